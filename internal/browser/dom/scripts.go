package dom

// JavaScript function declarations invoked with `this` bound to an element.
// Every function returns a value; an undefined result is reported as an error
// by the CDP runtime bindings.
const (
	ScriptClick = `function() { this.click(); return true; }`

	ScriptDispatchClick = `function() {
	const opts = {bubbles: true, cancelable: true, view: window, button: 0};
	this.dispatchEvent(new MouseEvent('mousedown', opts));
	this.dispatchEvent(new MouseEvent('mouseup', opts));
	this.dispatchEvent(new MouseEvent('click', opts));
	return true;
}`

	ScriptScrollIntoView = `function() {
	this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
	return true;
}`

	// ScriptSetValue(value, append) assigns the value and notifies listeners
	// the way a user edit would.
	ScriptSetValue = `function(value, append) {
	if (typeof this.focus === 'function') { this.focus(); }
	const next = append ? String(this.value || '') + value : value;
	if (this.isContentEditable) {
		this.textContent = next;
	} else {
		this.value = next;
	}
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return this.isContentEditable ? this.textContent : this.value;
}`

	ScriptHover = `function() {
	const r = this.getBoundingClientRect();
	const opts = {bubbles: true, cancelable: true, view: window, clientX: r.left + r.width / 2, clientY: r.top + r.height / 2};
	this.dispatchEvent(new MouseEvent('mouseover', opts));
	this.dispatchEvent(new MouseEvent('mouseenter', Object.assign({}, opts, {bubbles: false})));
	this.dispatchEvent(new MouseEvent('mousemove', opts));
	return true;
}`

	// ScriptReadText applies visible text, then value, then textContent.
	ScriptReadText = `function() {
	const pick = (s) => (typeof s === 'string' ? s.trim() : '');
	return pick(this.innerText) || pick(this.value) || pick(this.textContent) || '';
}`

	// ScriptSelectOption(by, wanted) returns false when no option matches.
	ScriptSelectOption = `function(by, wanted) {
	const opts = Array.from(this.options || []);
	const match = opts.find(o => by === 'value' ? o.value === wanted : o.text.trim() === wanted);
	if (!match) { return false; }
	match.selected = true;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
}`

	// ScriptHitTest reports whether the element's centre receives pointer
	// events: "ok", "covered" or "offscreen".
	ScriptHitTest = `function() {
	const r = this.getBoundingClientRect();
	const x = r.left + r.width / 2, y = r.top + r.height / 2;
	if (x < 0 || y < 0 || x > window.innerWidth || y > window.innerHeight) { return 'offscreen'; }
	const hit = document.elementFromPoint(x, y);
	return (hit && (hit === this || this.contains(hit))) ? 'ok' : 'covered';
}`

	// ScriptXPath mirrors GenerateUniqueXPath in the page.
	ScriptXPath = `function() {
	const lit = (s) => s.indexOf("'") < 0 ? "'" + s + "'" :
		(s.indexOf('"') < 0 ? '"' + s + '"' : "concat('" + s.split("'").join("',\"'\",'") + "')");
	const parts = [];
	let anchored = false;
	for (let n = this; n && n.nodeType === Node.ELEMENT_NODE; n = n.parentElement) {
		const tag = n.localName;
		if (n.id) {
			const anchor = "//*[@id=" + lit(n.id) + "]";
			const hits = document.evaluate(anchor, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			if (hits.snapshotLength === 1) { parts.push(anchor); anchored = true; break; }
		}
		let i = 1;
		for (let p = n.previousElementSibling; p; p = p.previousElementSibling) {
			if (p.localName === tag) { i++; }
		}
		parts.push(tag + '[' + i + ']');
	}
	const path = parts.reverse().join('/');
	return anchored ? path : '/' + path;
}`
)
