package flatten

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/xml2csv/api"
	"github.com/agentic-research/xml2csv/internal/tree"
)

func mustParse(t *testing.T, doc string) *tree.Node {
	t.Helper()
	root, err := (&tree.XMLParser{}).Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return root
}

// ---------------------------------------------------------------------------
// Row locator
// ---------------------------------------------------------------------------

func TestLocate_NoRepetition(t *testing.T) {
	for _, doc := range []string{
		`<a/>`,
		`<a>text</a>`,
		`<a><b>1</b><c><d>2</d><e>3</e></c></a>`,
	} {
		root := mustParse(t, doc)
		loc := Locate(root)
		assert.True(t, loc.Implicit(), doc)
		assert.Nil(t, loc.Parent)
		assert.Equal(t, "a", loc.Tag)
		require.Len(t, loc.Elements, 1)
		assert.Same(t, root, loc.Elements[0])
	}
}

func TestLocate_Scenario(t *testing.T) {
	root := mustParse(t, `<a><fa1>X</fa1><b><fb1>1</fb1></b><b><fb1>2</fb1></b></a>`)
	loc := Locate(root)
	assert.Same(t, root, loc.Parent)
	assert.Equal(t, "b", loc.Tag)
	require.Len(t, loc.Elements, 2)
	assert.Equal(t, "1", loc.Elements[0].Children[0].Text)
	assert.Equal(t, "2", loc.Elements[1].Children[0].Text)
}

func TestLocate_ShallowestWins(t *testing.T) {
	// The deep <n> repeat sits under the first child, but <item> repeats one
	// level higher in breadth-first order.
	root := mustParse(t, `<r>
  <meta><notes><n>1</n><n>2</n></notes></meta>
  <items><item>a</item><item>b</item><item>c</item></items>
</r>`)
	loc := Locate(root)
	require.NotNil(t, loc.Parent)
	assert.Equal(t, "items", loc.Parent.Tag)
	assert.Equal(t, "item", loc.Tag)
	assert.Len(t, loc.Elements, 3)
}

func TestLocate_FirstSeenTag(t *testing.T) {
	root := mustParse(t, `<r><x>1</x><y>1</y><y>2</y><x>2</x></r>`)
	loc := Locate(root)
	assert.Equal(t, "x", loc.Tag)
	assert.Len(t, loc.Elements, 2)
}

func TestLocate_Nil(t *testing.T) {
	loc := Locate(nil)
	assert.Empty(t, loc.Elements)
}

// ---------------------------------------------------------------------------
// Group indexer and selection expander
// ---------------------------------------------------------------------------

func TestNextUnresolved_OwnGroupsFirst(t *testing.T) {
	b := mustParse(t, `<b><s><e>1</e><e>2</e></s><c>1</c><c>2</c></b>`)
	f := Flattener{}

	key, nodes, ok := f.NextUnresolved(b, Selection{}, PathKey{"b"})
	require.True(t, ok)
	assert.Equal(t, PathKey{"b", "c"}, key)
	assert.Len(t, nodes, 2)

	sel := Selection{}.With(key, 0)
	key, nodes, ok = f.NextUnresolved(b, sel, PathKey{"b"})
	require.True(t, ok)
	assert.Equal(t, PathKey{"b", "s", "e"}, key)
	assert.Len(t, nodes, 2)

	sel = sel.With(key, 1)
	_, _, ok = f.NextUnresolved(b, sel, PathKey{"b"})
	assert.False(t, ok)
}

func TestExpand_CartesianProduct(t *testing.T) {
	b := mustParse(t, `<b><c>1</c><c>2</c><d>x</d><d>y</d><d>z</d></b>`)
	sels := Expand(b)
	require.Len(t, sels, 6)

	c, d := PathKey{"b", "c"}, PathKey{"b", "d"}
	var got [][2]int
	for _, s := range sels {
		ci, ok := s.Index(c)
		require.True(t, ok)
		di, ok := s.Index(d)
		require.True(t, ok)
		got = append(got, [2]int{ci, di})
	}
	// Highest index first at every level.
	assert.Equal(t, [][2]int{{1, 2}, {1, 1}, {1, 0}, {0, 2}, {0, 1}, {0, 0}}, got)
}

func TestExpand_NoNestedGroups(t *testing.T) {
	sels := Expand(mustParse(t, `<b><x>1</x><y><z>2</z></y></b>`))
	require.Len(t, sels, 1)
	assert.Empty(t, sels[0])
}

func TestExpand_RowCountIsProductOfGroupSizes(t *testing.T) {
	cases := []struct {
		doc  string
		want int
	}{
		{`<b><x>1</x></b>`, 1},
		{`<b><c>1</c><c>2</c><c>3</c></b>`, 3},
		{`<b><c>1</c><c>2</c><s><e>1</e><e>2</e></s></b>`, 4},
		{`<b><c>1</c><c>2</c><s><t><e>1</e><e>2</e><e>3</e></t></s><d/><d/></b>`, 12},
		// Repetition inside repetition is not discovered by default.
		{`<b><c><e>1</e><e>2</e></c><c><e>3</e><e>4</e></c></b>`, 2},
	}
	for _, tc := range cases {
		assert.Len(t, Expand(mustParse(t, tc.doc)), tc.want, tc.doc)
	}
}

func TestExpand_DescendSelected(t *testing.T) {
	b := mustParse(t, `<b><c><e>1</e><e>2</e></c><c><e>3</e><e>4</e><e>5</e></c></b>`)
	sels := Flattener{DescendSelected: true}.Expand(b)
	assert.Len(t, sels, 5)
}

// ---------------------------------------------------------------------------
// Leaf collector
// ---------------------------------------------------------------------------

type pair struct {
	path string
	text string
}

func leaves(n *tree.Node, sel Selection) []pair {
	var out []pair
	for p, text := range CollectLeaves(n, sel, nil) {
		out = append(out, pair{p.Dotted(), text})
	}
	return out
}

func TestCollectLeaves_SkipsUnresolvedGroups(t *testing.T) {
	b := mustParse(t, `<b><id> 7 </id><c><v>x</v></c><c><v>y</v></c><s><w>w</w></s></b>`)

	assert.Equal(t, []pair{{"b.id", "7"}, {"b.s.w", "w"}}, leaves(b, Selection{}))

	sel := Selection{}.With(PathKey{"b", "c"}, 1)
	assert.Equal(t, []pair{{"b.id", "7"}, {"b.c.v", "y"}, {"b.s.w", "w"}}, leaves(b, sel))

	outOfRange := Selection{}.With(PathKey{"b", "c"}, 9)
	assert.Equal(t, leaves(b, Selection{}), leaves(b, outOfRange))
}

func TestCollectLeaves_MixedContentTextDropped(t *testing.T) {
	n := mustParse(t, `<a>dropped<b>kept</b></a>`)
	assert.Equal(t, []pair{{"a.b", "kept"}}, leaves(n, Selection{}))
}

func TestCollectLeaves_Restartable(t *testing.T) {
	n := mustParse(t, `<a><x>1</x><y>2</y><z>3</z></a>`)
	seq := CollectLeaves(n, Selection{}, nil)

	var first, second []string
	for _, text := range seq {
		first = append(first, text)
	}
	for _, text := range seq {
		second = append(second, text)
		if len(second) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2", "3"}, first)
	assert.Equal(t, []string{"1", "2"}, second)
}

func TestCollectLeaves_RootLeaf(t *testing.T) {
	assert.Equal(t, []pair{{"a", "v"}}, leaves(tree.Leaf("a", "v"), Selection{}))
}

// ---------------------------------------------------------------------------
// Column namer
// ---------------------------------------------------------------------------

func TestHeader_NamingPolicy(t *testing.T) {
	h := NewHeader()
	assert.Equal(t, "x", h.Name(PathKey{"r", "x"}))
	assert.Equal(t, "x", h.Name(PathKey{"r", "x"}), "same path reuses its column")
	assert.Equal(t, "a.b.x", h.Name(PathKey{"a", "b", "x"}))
	assert.Equal(t, "a.b.x", h.Name(PathKey{"a", "b", "x"}))
	assert.Equal(t, "a.b.x_2", h.Name(PathKey{"a.b", "x"}), "dotted form taken by another path")
	assert.Equal(t, "a.b.x_3", h.Name(PathKey{"a.b.x"}))
	assert.Equal(t, "b.x", h.Name(PathKey{"a", "b.x"}))

	assert.Equal(t, []string{"x", "a.b.x", "a.b.x_2", "a.b.x_3", "b.x"}, h.Columns())
	p, ok := h.Path("a.b.x_2")
	require.True(t, ok)
	assert.Equal(t, PathKey{"a.b", "x"}, p)
	name, ok := h.Lookup(PathKey{"a.b.x"})
	require.True(t, ok)
	assert.Equal(t, "a.b.x_3", name)
}

func TestHeader_Injective(t *testing.T) {
	var h Header
	paths := []PathKey{
		{"a", "id"}, {"b", "id"}, {"c", "id"}, {"a", "b", "id"}, {"a.b", "id"},
		{"id"}, {"b.id"}, {"x", "b.id"}, {"a", "b", "id"}, {"b", "id"},
	}
	bound := map[string]string{}
	for _, p := range paths {
		col := h.Name(p)
		if prev, ok := bound[col]; ok {
			assert.Equal(t, prev, p.key(), "column %q bound to two paths", col)
		}
		bound[col] = p.key()
	}
	assert.Equal(t, len(bound), h.Len())
}

func TestPathKey_IdentityIsUnambiguous(t *testing.T) {
	pairs := [][2]PathKey{
		{{"a", "b"}, {"a\x1fb"}},
		{{"a", "b"}, {"ab"}},
		{{"1:a"}, {"a", ""}},
		{{""}, {}},
	}
	for _, p := range pairs {
		assert.NotEqual(t, p[0].key(), p[1].key(), "%q vs %q", p[0], p[1])
	}

	sel := Selection{}.With(PathKey{"a", "b"}, 1)
	assert.False(t, sel.Has(PathKey{"a\x1fb"}))
}

func TestHeader_ColumnsIsACopy(t *testing.T) {
	h := NewHeader()
	h.Name(PathKey{"a"})
	cols := h.Columns()
	cols[0] = "mutated"
	assert.Equal(t, []string{"a"}, h.Columns())
}

// ---------------------------------------------------------------------------
// Row assembler
// ---------------------------------------------------------------------------

func TestConvert_Scenario(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<a><fa1>X</fa1><b><fb1>1</fb1></b><b><fb1>2</fb1></b></a>`), h)

	assert.Equal(t, []string{"fa1", "fb1"}, h.Columns())
	assert.Equal(t, []api.Row{
		{"fa1": "X", "fb1": "1"},
		{"fa1": "X", "fb1": "2"},
	}, rows)
}

func TestConvert_NestedCartesian(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<r>
  <b><c>1</c><c>2</c><d>x</d><d>y</d><d>z</d></b>
  <b><c>3</c></b>
</r>`), h)

	require.Len(t, rows, 7)
	assert.Equal(t, []string{"c", "d"}, h.Columns())
	assert.Equal(t, api.Row{"c": "2", "d": "z"}, rows[0])
	assert.Equal(t, api.Row{"c": "2", "d": "x"}, rows[2])
	assert.Equal(t, api.Row{"c": "1", "d": "z"}, rows[3])
	assert.Equal(t, api.Row{"c": "1", "d": "x"}, rows[5])
	assert.Equal(t, api.Row{"c": "3"}, rows[6])
}

func TestConvert_LastCombinationNamesFirst(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<r><b><c><x>1</x></c><c><y>2</y></c></b><b><c><x>3</x></c></b></r>`), h)

	// The second <c> is expanded first, so y is named before x.
	assert.Equal(t, []string{"y", "x"}, h.Columns())
	assert.Equal(t, []api.Row{{"y": "2"}, {"x": "1"}, {"x": "3"}}, rows)
}

func TestConvert_LeafNameCollision(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<a><name>X</name><b><name>Y</name></b></a>`), h)

	assert.Equal(t, []string{"name", "a.b.name"}, h.Columns())
	assert.Equal(t, []api.Row{{"name": "X", "a.b.name": "Y"}}, rows)
}

func TestConvert_MissingNestedGroupLeftBlank(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<r>
  <b><id>1</id><c><v>x</v></c><c><v>y</v></c></b>
  <b><id>2</id></b>
</r>`), h)

	table := Table(h, rows)
	assert.Equal(t, []string{"id", "v"}, table.Header)
	assert.Equal(t, [][]string{{"1", "y"}, {"1", "x"}, {"2", ""}}, table.Records())
}

func TestConvert_ContainerColumnsLead(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<order>
  <line><sku>A</sku></line>
  <id>42</id>
  <line><sku>B</sku></line>
  <tags><t>x</t><t>y</t></tags>
  <customer><name>Ann</name></customer>
</order>`), h)

	// The repeating <t> group under the parent is skipped for container values.
	assert.Equal(t, []string{"id", "name", "sku"}, h.Columns())
	assert.Equal(t, []api.Row{
		{"id": "42", "name": "Ann", "sku": "A"},
		{"id": "42", "name": "Ann", "sku": "B"},
	}, rows)
}

func TestConvert_EmptyLeafRegistersColumn(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<a><b><x>1</x><y/></b><b><x>2</x><y>  </y></b></a>`), h)
	assert.Equal(t, []string{"x", "y"}, h.Columns())
	assert.Equal(t, []api.Row{{"x": "1"}, {"x": "2"}}, rows)
}

func TestConvert_EmptyLeafNeverTakesFallbackName(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<a><b><c>1</c><d><c/></d></b><b><c>2</c><d><c> </c></d></b></a>`), h)
	assert.Equal(t, []string{"c"}, h.Columns())
	assert.Equal(t, []api.Row{{"c": "1"}, {"c": "2"}}, rows)

	// A later value on that path still gets its own column.
	rows = Convert(mustParse(t, `<a><b><c>3</c><d><c>4</c></d></b><b><c>5</c></b></a>`), h)
	assert.Equal(t, []string{"c", "b.d.c"}, h.Columns())
	assert.Equal(t, []api.Row{{"c": "3", "b.d.c": "4"}, {"c": "5"}}, rows)
}

func TestConvert_JSONKeysWithControlCharacters(t *testing.T) {
	doc, err := (&tree.JSONParser{}).Parse(strings.NewReader(`{"a":{"b":"nested"},"a\u001fb":"flat"}`))
	require.NoError(t, err)

	h := NewHeader()
	rows := Convert(doc, h)
	assert.Equal(t, []string{"b", "a\x1fb"}, h.Columns())
	assert.Equal(t, []api.Row{{"b": "nested", "a\x1fb": "flat"}}, rows)
}

func TestConvert_ImplicitSingleRow(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<a><k>1</k><m><k>2</k></m></a>`), h)
	assert.Equal(t, []string{"k", "a.m.k"}, h.Columns())
	assert.Equal(t, []api.Row{{"k": "1", "a.m.k": "2"}}, rows)
}

func TestConvert_LeafRowElements(t *testing.T) {
	h := NewHeader()
	rows := Convert(mustParse(t, `<list><v>1</v><v>2</v></list>`), h)
	assert.Equal(t, []string{"v"}, h.Columns())
	assert.Equal(t, []api.Row{{"v": "1"}, {"v": "2"}}, rows)
}

func TestConvert_DescendSelected(t *testing.T) {
	doc := `<r>
  <b><c><e>1</e><e>2</e></c><c><e>3</e></c></b>
  <b><c><e>4</e></c></b>
</r>`
	h := NewHeader()
	rows := Convert(mustParse(t, doc), h)
	// <c> repeats only in the first <b>; its <e> children are never resolved.
	assert.Equal(t, []api.Row{{"e": "3"}, {}, {"e": "4"}}, rows)

	h = NewHeader()
	rows = Flattener{DescendSelected: true}.Convert(mustParse(t, doc), h)
	assert.Equal(t, []api.Row{{"e": "3"}, {"e": "2"}, {"e": "1"}, {"e": "4"}}, rows)
}

func TestConvert_Idempotent(t *testing.T) {
	doc := mustParse(t, `<r><h>H</h><b><id>1</id><c>x</c><c>y</c><n><id>9</id></n></b><b><id>2</id></b></r>`)

	h1, h2 := NewHeader(), NewHeader()
	rows1 := Convert(doc, h1)
	rows2 := Convert(doc, h2)
	assert.Equal(t, h1.Columns(), h2.Columns())
	assert.Equal(t, rows1, rows2)
}

func TestMerge_SharedHeader(t *testing.T) {
	doc1 := mustParse(t, `<a><b><x>1</x></b><b><x>2</x></b></a>`)
	doc2 := mustParse(t, `<a><b><y>3</y></b><b><x>4</x></b></a>`)

	h := NewHeader()
	rows := Merge([]*tree.Node{doc1, doc2}, h)
	assert.Equal(t, []string{"x", "y"}, h.Columns())
	assert.Equal(t, []api.Row{{"x": "1"}, {"x": "2"}, {"y": "3"}, {"x": "4"}}, rows)

	reversed := NewHeader()
	rrows := Merge([]*tree.Node{doc2, doc1}, reversed)
	assert.Equal(t, []string{"y", "x"}, reversed.Columns())
	assert.ElementsMatch(t, h.Columns(), reversed.Columns())
	assert.ElementsMatch(t, rows, rrows)
}

func TestMerge_CollisionAcrossDocuments(t *testing.T) {
	doc1 := mustParse(t, `<a><b><name>1</name></b><b><name>2</name></b></a>`)
	doc2 := mustParse(t, `<a><b><p><name>3</name></p></b><b><p><name>4</name></p></b></a>`)

	h := NewHeader()
	rows := Merge([]*tree.Node{doc1, doc2}, h)
	assert.Equal(t, []string{"name", "b.p.name"}, h.Columns())
	assert.Equal(t, api.Row{"b.p.name": "3"}, rows[2])
}

func TestConvert_Nil(t *testing.T) {
	assert.Nil(t, Convert(nil, NewHeader()))
}

func TestSummarize(t *testing.T) {
	s := Flattener{}.Summarize(mustParse(t, `<a><fa1>X</fa1><b><fb1>1</fb1></b><b><fb1>2</fb1></b></a>`))
	assert.Equal(t, Summary{
		Parent:   "a",
		RowTag:   "b",
		Elements: 2,
		Rows:     2,
		Columns:  []string{"fa1", "fb1"},
	}, s)

	s = Flattener{}.Summarize(mustParse(t, `<a><b>1</b></a>`))
	assert.Equal(t, "", s.Parent)
	assert.Equal(t, "a", s.RowTag)
	assert.Equal(t, 1, s.Rows)
}
