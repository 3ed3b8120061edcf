package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/extract"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/htmldoc"
)

var fixedTime = time.Date(2025, 10, 26, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedTime }

func TestExtract_FromDocument(t *testing.T) {
	doc, err := htmldoc.ParseString(`<html><body>
		<button id="submit" class="btn   btn-primary" type="submit" data-testid="login" onclick="go()">
			Log
			in
		</button>
		<input id="q" name="q" value="preset">
		<a href="/docs" title="Docs"></a>
	</body></html>`)
	require.NoError(t, err)
	require.NoError(t, doc.SetBox("#submit", schemas.BoundingBox{X: 10, Y: 20, Width: 80, Height: 30}))

	ex := extract.New(extract.WithClock(clock))
	ctx := context.Background()

	hs, err := doc.FindElements(ctx, schemas.ByID("submit"), 0)
	require.NoError(t, err)
	snap := ex.Extract(ctx, doc, hs[0])

	assert.Equal(t, "button", snap.Tag())
	assert.Equal(t, []string{"id", "class", "type", "data-testid", "text"}, snap.Names(), "priority order, unknown attributes dropped")
	class, _ := snap.Get("class")
	assert.Equal(t, "btn btn-primary", class)
	text, _ := snap.Get("text")
	assert.Equal(t, "Log in", text)
	assert.Equal(t, schemas.BoundingBox{X: 10, Y: 20, Width: 80, Height: 30}, snap.Box())
	assert.Equal(t, fixedTime, snap.CapturedAt())

	t.Run("value fallback", func(t *testing.T) {
		hs, err := doc.FindElements(ctx, schemas.ByID("q"), 0)
		require.NoError(t, err)
		text, ok := ex.Extract(ctx, doc, hs[0]).Get("text")
		assert.True(t, ok)
		assert.Equal(t, "preset", text)
	})

	t.Run("no text at all", func(t *testing.T) {
		hs, err := doc.FindElements(ctx, schemas.ByCSS("a"), 0)
		require.NoError(t, err)
		snap := ex.Extract(ctx, doc, hs[0])
		_, ok := snap.Get("text")
		assert.False(t, ok)
		assert.Equal(t, []string{"href", "title"}, snap.Names())
	})
}

func TestExtract_CustomAttributes(t *testing.T) {
	doc, err := htmldoc.ParseString(`<div id="a" aria-label="Menu" data-role="nav"></div>`)
	require.NoError(t, err)
	hs, err := doc.FindElements(context.Background(), schemas.ByID("a"), 0)
	require.NoError(t, err)

	snap := extract.New(extract.WithAttributes("data-role", "id")).Extract(context.Background(), doc, hs[0])
	assert.Equal(t, []string{"data-role", "id"}, snap.Names())
}

func TestExtract_TruncatesText(t *testing.T) {
	long := strings.Repeat("é", 200)
	doc, err := htmldoc.ParseString(`<p id="p">` + long + `</p>`)
	require.NoError(t, err)
	hs, err := doc.FindElements(context.Background(), schemas.ByID("p"), 0)
	require.NoError(t, err)

	text, _ := extract.New().Extract(context.Background(), doc, hs[0]).Get("text")
	assert.LessOrEqual(t, len(text), 256)
	assert.True(t, strings.HasPrefix(long, text))
}

// failingInspector fails every read, as a stale handle would.
type failingInspector struct{ mock.Mock }

func (f *failingInspector) TagName(ctx context.Context, h driver.Handle) (string, error) {
	args := f.Called(ctx, h)
	return args.String(0), args.Error(1)
}
func (f *failingInspector) Attribute(ctx context.Context, h driver.Handle, name string) (string, bool, error) {
	args := f.Called(ctx, h, name)
	return args.String(0), args.Bool(1), args.Error(2)
}
func (f *failingInspector) Property(ctx context.Context, h driver.Handle, name string) (string, error) {
	args := f.Called(ctx, h, name)
	return args.String(0), args.Error(1)
}
func (f *failingInspector) Text(ctx context.Context, h driver.Handle) (string, error) {
	args := f.Called(ctx, h)
	return args.String(0), args.Error(1)
}
func (f *failingInspector) BoundingBox(ctx context.Context, h driver.Handle) (schemas.BoundingBox, error) {
	args := f.Called(ctx, h)
	return args.Get(0).(schemas.BoundingBox), args.Error(1)
}
func (f *failingInspector) XPath(ctx context.Context, h driver.Handle) (string, error) {
	args := f.Called(ctx, h)
	return args.String(0), args.Error(1)
}

type ref string

func (r ref) Ref() string { return string(r) }

func TestExtract_NeverFails(t *testing.T) {
	boom := errors.New("boom")
	insp := new(failingInspector)
	insp.On("TagName", mock.Anything, mock.Anything).Return("", driver.ErrStaleReference)
	insp.On("Attribute", mock.Anything, mock.Anything, "title").Return("Help", true, nil)
	insp.On("Attribute", mock.Anything, mock.Anything, mock.Anything).Return("", false, boom)
	insp.On("Text", mock.Anything, mock.Anything).Return("", boom)
	insp.On("Property", mock.Anything, mock.Anything, "innerText").Return("", boom)
	insp.On("BoundingBox", mock.Anything, mock.Anything).Return(schemas.BoundingBox{X: 9}, boom)

	snap := extract.New().Extract(context.Background(), insp, ref("x"))

	assert.Empty(t, snap.Tag())
	assert.Equal(t, []string{"title"}, snap.Names())
	assert.True(t, snap.Box().IsZero(), "failed geometry reads leave a zero box")
	insp.AssertExpectations(t)
}

func TestExtract_CapsLongAttributeValues(t *testing.T) {
	long := "data:image/png;base64," + strings.Repeat("Q", 20_000)
	doc, err := htmldoc.ParseString(`<html><body><img id="logo" alt="Logo" src="` + long + `"></body></html>`)
	require.NoError(t, err)
	ctx := context.Background()

	hs, err := doc.FindElements(ctx, schemas.ByID("logo"), 0)
	require.NoError(t, err)
	snap := extract.New().Extract(ctx, doc, hs[0])

	src, ok := snap.Get("src")
	require.True(t, ok)
	assert.Equal(t, 512, len(src))
	assert.True(t, strings.HasPrefix(long, src))
	alt, _ := snap.Get("alt")
	assert.Equal(t, "Logo", alt)
}
