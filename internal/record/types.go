package record

import "time"

// Address is shared by the typed records and resolves its own fields.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

func (a *Address) FieldValue(path string) (any, bool) {
	if a == nil {
		return nil, false
	}
	switch path {
	case "street":
		return a.Street, true
	case "city":
		return a.City, true
	case "state":
		return a.State, true
	case "postal_code":
		return a.PostalCode, true
	case "country":
		return a.Country, true
	default:
		return nil, false
	}
}

// Lead is a sales lead as exposed by the CRM.
type Lead struct {
	LeadID     string     `json:"id"`
	Title      string     `json:"title"`
	Source     string     `json:"source,omitempty"`
	Status     string     `json:"status,omitempty"`
	Industry   string     `json:"industry,omitempty"`
	Value      *float64   `json:"value,omitempty"`
	Email      string     `json:"email,omitempty"`
	Address    *Address   `json:"address,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpectedAt *time.Time `json:"expected_close_date,omitempty"`
	Attributes Fields     `json:"attributes,omitempty"`
}

func (l *Lead) Kind() Kind { return KindLead }

func (l *Lead) ID() string { return l.LeadID }

func (l *Lead) FieldValue(path string) (any, bool) {
	head, rest := splitPath(path)
	switch head {
	case "id":
		return leaf(l.LeadID, rest)
	case "title":
		return leaf(l.Title, rest)
	case "source":
		return leaf(l.Source, rest)
	case "status":
		return leaf(l.Status, rest)
	case "industry":
		return leaf(l.Industry, rest)
	case "email":
		return leaf(l.Email, rest)
	case "value":
		if l.Value == nil {
			return leaf(nil, rest)
		}
		return leaf(*l.Value, rest)
	case "created_at":
		return leaf(l.CreatedAt, rest)
	case "expected_close_date":
		if l.ExpectedAt == nil {
			return leaf(nil, rest)
		}
		return leaf(*l.ExpectedAt, rest)
	case "address":
		return nested(l.Address, rest)
	}
	return l.Attributes.FieldValue(path)
}

// Organization is a company account.
type Organization struct {
	OrganizationID string   `json:"id"`
	Name           string   `json:"name"`
	Industry       string   `json:"industry,omitempty"`
	EmployeeCount  *int     `json:"employee_count,omitempty"`
	AnnualRevenue  *float64 `json:"annual_revenue,omitempty"`
	Website        string   `json:"website,omitempty"`
	Address        *Address `json:"address,omitempty"`
	Attributes     Fields   `json:"attributes,omitempty"`
}

func (o *Organization) Kind() Kind { return KindOrganization }

func (o *Organization) ID() string { return o.OrganizationID }

func (o *Organization) FieldValue(path string) (any, bool) {
	head, rest := splitPath(path)
	switch head {
	case "id":
		return leaf(o.OrganizationID, rest)
	case "name":
		return leaf(o.Name, rest)
	case "industry":
		return leaf(o.Industry, rest)
	case "website":
		return leaf(o.Website, rest)
	case "employee_count":
		if o.EmployeeCount == nil {
			return leaf(nil, rest)
		}
		return leaf(*o.EmployeeCount, rest)
	case "annual_revenue":
		if o.AnnualRevenue == nil {
			return leaf(nil, rest)
		}
		return leaf(*o.AnnualRevenue, rest)
	case "address":
		return nested(o.Address, rest)
	}
	return o.Attributes.FieldValue(path)
}

// Person is a contact, optionally linked to an organization.
type Person struct {
	PersonID     string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email,omitempty"`
	JobTitle     string        `json:"job_title,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
	Address      *Address      `json:"address,omitempty"`
	Attributes   Fields        `json:"attributes,omitempty"`
}

func (p *Person) Kind() Kind { return KindPerson }

func (p *Person) ID() string { return p.PersonID }

func (p *Person) FieldValue(path string) (any, bool) {
	head, rest := splitPath(path)
	switch head {
	case "id":
		return leaf(p.PersonID, rest)
	case "name":
		return leaf(p.Name, rest)
	case "email":
		return leaf(p.Email, rest)
	case "job_title":
		return leaf(p.JobTitle, rest)
	case "organization":
		return nested(p.Organization, rest)
	case "address":
		return nested(p.Address, rest)
	}
	return p.Attributes.FieldValue(path)
}

func splitPath(path string) (string, string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:]
		}
	}
	return path, ""
}

// leaf returns a scalar column; a scalar has no sub-fields.
func leaf(v any, rest string) (any, bool) {
	if rest != "" {
		return nil, false
	}
	return v, true
}

// nested descends into a nested value. A nil nested value is a present null
// when addressed directly and absent below.
func nested(v FieldResolver, rest string) (any, bool) {
	if isNilResolver(v) {
		if rest == "" {
			return nil, true
		}
		return nil, false
	}
	if rest == "" {
		return v, true
	}
	return v.FieldValue(rest)
}

func isNilResolver(v FieldResolver) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case *Address:
		return typed == nil
	case *Organization:
		return typed == nil
	case *Person:
		return typed == nil
	case *Lead:
		return typed == nil
	}
	return false
}
