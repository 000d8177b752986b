package dataset

import "fmt"

// DefaultSize is the number of users served when nothing else is configured.
const DefaultSize = 10000

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Zipcode string `json:"zipcode"`
}

type Company struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

type UserRecord struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Address Address `json:"address"`
	Company Company `json:"company"`
}

// Generate returns n users with ids 1..n. Every field is derived from the id only.
func Generate(n int) []UserRecord {
	if n < 0 {
		n = 0
	}
	users := make([]UserRecord, n)
	for i := 1; i <= n; i++ {
		users[i-1] = newUser(i)
	}
	return users
}

func newUser(id int) UserRecord {
	return UserRecord{
		ID:    id,
		Name:  fmt.Sprintf("User%d", id),
		Email: fmt.Sprintf("user%d@mail.com", id),
		Address: Address{
			Street:  fmt.Sprintf("%d Main St", id),
			City:    "Sampleville",
			Zipcode: fmt.Sprintf("000%02d", id%100),
		},
		Company: Company{
			Name:       fmt.Sprintf("Company%d", id%10),
			Department: "Engineering",
		},
	}
}

// Provider is the read-only dataset shared by the adapters.
type Provider struct {
	users []UserRecord
}

func NewProvider(n int) *Provider {
	return &Provider{users: Generate(n)}
}

// All returns the users in id order. Callers must not modify the slice.
func (p *Provider) All() []UserRecord {
	return p.users
}

func (p *Provider) Len() int {
	return len(p.users)
}

// Lookup finds a user by id. Ids are dense, so this is an index.
func (p *Provider) Lookup(id int) (UserRecord, bool) {
	if id < 1 || id > len(p.users) {
		return UserRecord{}, false
	}
	return p.users[id-1], true
}
