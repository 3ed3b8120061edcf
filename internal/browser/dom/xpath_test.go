package dom_test

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-heal/internal/browser/dom"
)

const testHTML = `
	<html>
	<body>
		<div id="header">
			<h1>Welcome</h1>
		</div>
		<div class="content">
			<p>P1</p><p>P2</p>
			<ul>
				<li>Item 1</li>
				<!-- comment -->
				<li>Item 2</li>
				<li id="special">Item 3</li>
			</ul>
		</div>
		<div class="content"><p>P3</p></div>
		<form>
			<input id="dup" name="first">
			<input id="dup" name="second">
			<span id="it's">quoted</span>
		</form>
	</body>
	</html>
	`

func TestGenerateUniqueXPath(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(testHTML))
	require.NoError(t, err)

	tests := []struct {
		name          string
		targetXPath   string
		expectedXPath string
	}{
		{"Body", "//body", "/html[1]/body[1]"},
		{"Element with ID", "//div[@id='header']", `//*[@id='header']`},
		{"Child of ID element", "//h1", `//*[@id='header']/h1[1]`},
		{"Specific index", "(//p)[2]", "/html[1]/body[1]/div[2]/p[2]"},
		{"Ambiguous classes", "(//div[@class='content'])[2]/p", "/html[1]/body[1]/div[3]/p[1]"},
		{"List item skipping comments", "//ul/li[2]", "/html[1]/body[1]/div[2]/ul[1]/li[2]"},
		{"List item with ID", "//li[@id='special']", `//*[@id='special']`},
		{"Duplicate id falls back to position", "//input[@name='second']", "/html[1]/body[1]/form[1]/input[2]"},
		{"Id containing a quote", "//span", `//*[@id="it's"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targetNode := htmlquery.FindOne(doc, tt.targetXPath)
			require.NotNil(t, targetNode, "Test setup error: target node not found with %s", tt.targetXPath)

			generatedXPath := dom.GenerateUniqueXPath(targetNode)
			assert.Equal(t, tt.expectedXPath, generatedXPath)

			nodes, err := htmlquery.QueryAll(doc, generatedXPath)
			require.NoError(t, err)
			require.Len(t, nodes, 1, "generated XPath must be unique")
			assert.Equal(t, targetNode, nodes[0])
		})
	}

	assert.Empty(t, dom.GenerateUniqueXPath(nil))
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, `'plain'`, dom.Literal("plain"))
	assert.Equal(t, `"it's"`, dom.Literal("it's"))
	assert.Equal(t, `concat('say "hi" it',"'",'s')`, dom.Literal(`say "hi" it's`))

	doc, err := htmlquery.Parse(strings.NewReader(`<p title='say "hi" it&#39;s'>x</p>`))
	require.NoError(t, err)
	node := htmlquery.FindOne(doc, "//p[@title="+dom.Literal(`say "hi" it's`)+"]")
	assert.NotNil(t, node, "concat literal must be valid XPath")
}

func TestText(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(`<div id="t">  Log
		<script>var x = 1;</script><b>in</b>  </div>`))
	require.NoError(t, err)
	n := htmlquery.FindOne(doc, "//div")

	assert.Equal(t, "Log in", dom.VisibleText(n))
	assert.Contains(t, dom.TextContent(n), "var x = 1;")
	assert.Equal(t, "a b c", dom.CollapseWhitespace("  a \n\t b   c "))
}

func TestTruncateBytes(t *testing.T) {
	assert.Equal(t, "abc", dom.TruncateBytes("abc", 5))
	assert.Equal(t, "ab", dom.TruncateBytes("abc", 2))
	// "é" is two bytes; cutting inside it drops the whole rune.
	assert.Equal(t, "a", dom.TruncateBytes("aé", 2))
}
