package graphqlapi

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	"apiscope/internal/dataset"
)

type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type Response struct {
	Data   any           `json:"data,omitempty"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// object keeps response keys in selection order.
type object []field

type field struct {
	key   string
	value any
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Executor runs query documents against the dataset.
type Executor struct {
	data *dataset.Provider
}

func NewExecutor(data *dataset.Provider) *Executor {
	return &Executor{data: data}
}

func (e *Executor) Execute(ctx context.Context, req Request) Response {
	if req.Query == "" {
		return Response{Errors: gqlerror.List{gqlerror.Errorf("no query document supplied")}}
	}

	doc, errs := gqlparser.LoadQuery(schema, req.Query)
	if len(errs) > 0 {
		return Response{Errors: errs}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		if req.OperationName == "" {
			return Response{Errors: gqlerror.List{gqlerror.Errorf("operation name is required when the document has several operations")}}
		}
		return Response{Errors: gqlerror.List{gqlerror.Errorf("unknown operation %q", req.OperationName)}}
	}
	if op.Operation != ast.Query {
		return Response{Errors: gqlerror.List{gqlerror.Errorf("%s operations are not supported", op.Operation)}}
	}

	vars, err := validator.VariableValues(schema, op, req.Variables)
	if err != nil {
		return Response{Errors: gqlerror.List{gqlerror.WrapIfUnwrapped(err)}}
	}

	ex := &execution{ctx: ctx, data: e.data, vars: vars}
	data := ex.selectObject("Query", nil, op.SelectionSet)
	return Response{Data: data, Errors: ex.errs}
}

type execution struct {
	ctx  context.Context
	data *dataset.Provider
	vars map[string]any
	errs gqlerror.List
}

// collectFields flattens fragments and merges fields sharing a response key.
func collectFields(set ast.SelectionSet) []*ast.Field {
	var out []*ast.Field
	index := map[string]int{}

	var walk func(ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				key := responseKey(s)
				if i, ok := index[key]; ok {
					merged := *out[i]
					merged.SelectionSet = append(append(ast.SelectionSet{}, merged.SelectionSet...), s.SelectionSet...)
					out[i] = &merged
					continue
				}
				index[key] = len(out)
				out = append(out, s)
			case *ast.InlineFragment:
				walk(s.SelectionSet)
			case *ast.FragmentSpread:
				if s.Definition != nil {
					walk(s.Definition.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return out
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func (ex *execution) selectObject(typeName string, parent any, set ast.SelectionSet) object {
	fields := collectFields(set)
	out := make(object, 0, len(fields))
	for _, f := range fields {
		if ex.ctx.Err() != nil {
			ex.errs = append(ex.errs, gqlerror.Errorf("execution aborted: %v", ex.ctx.Err()))
			return out
		}
		out = append(out, field{key: responseKey(f), value: ex.resolve(typeName, parent, f)})
	}
	return out
}

func (ex *execution) resolve(typeName string, parent any, f *ast.Field) any {
	if f.Name == "__typename" {
		return typeName
	}

	switch typeName {
	case "Query":
		switch f.Name {
		case "users":
			users := ex.data.All()
			list := make([]any, len(users))
			for i := range users {
				list[i] = ex.selectObject("User", users[i], f.SelectionSet)
			}
			return list
		case "user":
			user, ok := ex.data.Lookup(toInt(f.ArgumentMap(ex.vars)["id"]))
			if !ok {
				return nil
			}
			return ex.selectObject("User", user, f.SelectionSet)
		}
	case "User":
		u := parent.(dataset.UserRecord)
		switch f.Name {
		case "id":
			return u.ID
		case "name":
			return u.Name
		case "email":
			return u.Email
		case "address":
			return ex.selectObject("Address", u.Address, f.SelectionSet)
		case "company":
			return ex.selectObject("Company", u.Company, f.SelectionSet)
		}
	case "Address":
		a := parent.(dataset.Address)
		switch f.Name {
		case "street":
			return a.Street
		case "city":
			return a.City
		case "zipcode":
			return a.Zipcode
		}
	case "Company":
		c := parent.(dataset.Company)
		switch f.Name {
		case "name":
			return c.Name
		case "department":
			return c.Department
		}
	}

	ex.errs = append(ex.errs, gqlerror.Errorf("no resolver for %s.%s", typeName, f.Name))
	return nil
}

// toInt accepts literal arguments (int64) and JSON-decoded variables.
func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
