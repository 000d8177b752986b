package graphqlapi

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const schemaSDL = `
type Address {
  street: String
  city: String
  zipcode: String
}

type Company {
  name: String
  department: String
}

type User {
  id: Int
  name: String
  email: String
  address: Address
  company: Company
}

type Query {
  users: [User!]!
  user(id: Int!): User
}
`

var schema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})

// DefaultQuery is the document the observer and the load generator send.
const DefaultQuery = "{ users { id name email address { city } company { name department } } }"
