package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanJS_Imports(t *testing.T) {
	js := `
import { a } from "./mod-a.js";
import "./side-effect.js";
import('./lazy.js').then(m => m.run());
const y = require("./nope.js");
`
	got := ScanJS(js)
	assert.Equal(t, []string{"./lazy.js", "./mod-a.js", "./side-effect.js"}, got.Imports)
}

func TestScanJS_SourceMaps(t *testing.T) {
	js := "console.log(1);\n//# sourceMappingURL=app.js.map\n"
	got := ScanJS(js)
	assert.Equal(t, []string{"app.js.map"}, got.SourceMaps)

	// Block-comment form keeps the URL but drops the comment closer.
	js = "/*# sourceMappingURL=lib.css.map */"
	got = ScanJS(js)
	assert.Equal(t, []string{"lib.css.map"}, got.SourceMaps)
}

func TestScanJS_NetworkHints(t *testing.T) {
	js := `
fetch("/api/users");
axios.get('/api/items');
axios.post("/api/create");
axios.head("/not-matched");
fetch(dynamicURL);
`
	got := ScanJS(js)
	assert.Equal(t, []string{"/api/create", "/api/items", "/api/users"}, got.NetworkHints)
}

func TestScanJS_DedupAndSort(t *testing.T) {
	js := `fetch("/b"); fetch("/a"); fetch("/b");`
	got := ScanJS(js)
	assert.Equal(t, []string{"/a", "/b"}, got.NetworkHints)
}

func TestScanJS_EmptyInput(t *testing.T) {
	got := ScanJS("")
	// Lists stay non-nil so they encode as [] rather than null.
	assert.NotNil(t, got.SourceMaps)
	assert.NotNil(t, got.Imports)
	assert.NotNil(t, got.NetworkHints)
	assert.Empty(t, got.SourceMaps)
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedUnique([]string{"c", "a", "b", "a"}))
	assert.Equal(t, []string{}, SortedUnique(nil))
}
