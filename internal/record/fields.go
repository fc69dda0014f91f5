package record

// Fields is a free-form attribute bag with dotted-path lookup.
type Fields map[string]any

func (f Fields) FieldValue(path string) (any, bool) {
	return Resolve(map[string]any(f), path)
}

// MapRecord is a Record backed entirely by a field map. It is what the
// trigger builds from an event payload.
type MapRecord struct {
	kind   Kind
	id     string
	fields Fields
}

func FromMap(kind Kind, id string, fields map[string]any) *MapRecord {
	if fields == nil {
		fields = map[string]any{}
	}
	return &MapRecord{kind: kind, id: id, fields: Fields(fields)}
}

func (r *MapRecord) Kind() Kind { return r.kind }

func (r *MapRecord) ID() string { return r.id }

func (r *MapRecord) FieldValue(path string) (any, bool) {
	return r.fields.FieldValue(path)
}

// Fields exposes the underlying attributes.
func (r *MapRecord) Fields() Fields { return r.fields }
