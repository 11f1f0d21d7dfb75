package flowrecord

// FieldDefinition describes one column of a Schema.
type FieldDefinition struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// Schema is an ordered set of columns plus the primary-key and indexed
// column positions. Two schemas are equal iff their field vectors and key
// sets are equal.
type Schema struct {
	Fields      []FieldDefinition
	PrimaryKey  []int
	IndexedCols []int
}

// NewSchema builds a Schema from field definitions and primary-key
// positions.
func NewSchema(fields []FieldDefinition, primaryKey ...int) Schema {
	return Schema{Fields: fields, PrimaryKey: primaryKey}
}

// Equal reports whether two schemas have identical field vectors and
// primary-key sets.
func (s Schema) Equal(other Schema) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range s.Fields {
		g := other.Fields[i]
		if f.Name != g.Name || f.Type != g.Type || f.Nullable != g.Nullable {
			return false
		}
	}
	return intSetEqual(s.PrimaryKey, other.PrimaryKey)
}

func intSetEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			return false
		}
	}
	return true
}

// Width returns the number of columns in the schema.
func (s Schema) Width() int { return len(s.Fields) }

// Concat concatenates two schemas for join output: left columns, then
// right columns, primary keys from both projected into the new width.
func Concat(left, right Schema) Schema {
	fields := make([]FieldDefinition, 0, len(left.Fields)+len(right.Fields))
	fields = append(fields, left.Fields...)
	fields = append(fields, right.Fields...)

	pk := make([]int, 0, len(left.PrimaryKey)+len(right.PrimaryKey))
	pk = append(pk, left.PrimaryKey...)
	offset := len(left.Fields)
	for _, idx := range right.PrimaryKey {
		pk = append(pk, idx+offset)
	}
	return Schema{Fields: fields, PrimaryKey: pk}
}
