package values

// AttrTable is an ordered name->value attribute table: an optional
// attribute table (ordered mapping from name to value) that backs
// struct and attribute-based native values.
type AttrTable struct {
	names []string
	vals  map[string]*Value
}

func NewAttrTable() *AttrTable {
	return &AttrTable{vals: make(map[string]*Value)}
}

func (t *AttrTable) Exists(name string) bool {
	_, ok := t.vals[name]
	return ok
}

func (t *AttrTable) Get(name string) (*Value, bool) {
	v, ok := t.vals[name]
	return v, ok
}

// Set inserts or replaces an attribute. When iref is true the table
// takes an additional reference rather than adopting the caller's
// existing one.
func (t *AttrTable) Set(name string, v *Value, iref bool) {
	if iref {
		Iref(v)
	}
	if old, ok := t.vals[name]; ok {
		Dref(old)
	} else {
		t.names = append(t.names, name)
	}
	t.vals[name] = v
}

func (t *AttrTable) Names() []string {
	return t.names
}

// Struct is the payload of a VStruct value: a named, user-defined type
// instance with its own attribute table. Struct values carry user-defined
// type identity per instance.
type Struct struct {
	TypeName string
	Attrs    *AttrTable
}

// NewStruct allocates a struct instance and assigns it a fresh,
// process-stable type id the first time typeID is zero; callers that
// already hold a type id (re-instantiating a declared struct type) pass
// it through so every instance of the same declared type shares one id.
func NewStruct(typeName string, typeID uint64, prov Provenance) *Value {
	if typeID == 0 {
		typeID = NewTypeID()
	}
	v := New(VStruct, typeID, &Struct{TypeName: typeName, Attrs: NewAttrTable()}, prov)
	v.AttrBased = true
	return v
}
