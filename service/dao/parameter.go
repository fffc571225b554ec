package dao

// Parameter is a named List filter; a value list matches any of its values
type Parameter struct {
	Name  string
	Value interface{}
}

// Values returns the parameter values as a list
func (p *Parameter) Values() []string {
	if p == nil {
		return nil
	}
	switch actual := p.Value.(type) {
	case string:
		return []string{actual}
	case []string:
		return actual
	}
	return nil
}

// Matches returns true when value is one of the parameter values
func (p *Parameter) Matches(value string) bool {
	for _, candidate := range p.Values() {
		if candidate == value {
			return true
		}
	}
	return false
}

// NewParameter creates a parameter; a single value is kept as a scalar
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
