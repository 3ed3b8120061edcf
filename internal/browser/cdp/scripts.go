package cdp

// Query functions run with `this` bound to the search scope (the document or
// a parent element) and return an array of elements in document order.
// Malformed selectors and expressions throw, which is reported as an invalid
// locator.
const (
	queryID = `function(id) {
	return Array.from(this.querySelectorAll('[id]')).filter(e => e.id === id);
}`

	queryCSS = `function(sel) {
	return Array.from(this.querySelectorAll(sel));
}`

	queryXPath = `function(expr) {
	const doc = this.ownerDocument || this;
	const snap = doc.evaluate(expr, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < snap.snapshotLength; i++) {
		const n = snap.snapshotItem(i);
		if (n.nodeType === Node.ELEMENT_NODE && n !== this) { out.push(n); }
	}
	return out;
}`

	// queryScript evaluates a JS expression yielding an element, a list of
	// elements or nothing; results outside the scope are dropped.
	queryScript = `function(expr) {
	const v = (0, eval)(expr);
	const list = v == null ? [] : (v instanceof Element ? [v] : Array.from(v));
	return list.filter(e => e instanceof Element && e !== this && this.contains(e));
}`
)

// Primitive helpers. Each throws "node is detached" for nodes no longer in
// the document so the caller sees a stale reference.
const (
	guard = `if (!this.isConnected) { throw new Error('stale: node is detached'); }`

	scriptProperty = `function(name) {
	` + guard + `
	const v = this[name];
	return v == null ? '' : String(v);
}`

	scriptText = `function() {
	` + guard + `
	return typeof this.innerText === 'string' ? this.innerText : (this.textContent || '');
}`

	scriptEditable = `function() {
	` + guard + `
	if (this.disabled || this.readOnly) { return false; }
	if (this.isContentEditable) { return true; }
	const tag = this.localName;
	if (tag === 'textarea') { return true; }
	if (tag !== 'input') { return false; }
	return ['', 'text', 'email', 'password', 'search', 'tel', 'url', 'number'].indexOf((this.getAttribute('type') || '').toLowerCase()) >= 0;
}`

	scriptClear = `function() {
	` + guard + `
	if (this.disabled || this.readOnly) { return false; }
	if (this.isContentEditable) { this.textContent = ''; }
	else if ('value' in this) { this.value = ''; }
	else { return false; }
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
}`
)
