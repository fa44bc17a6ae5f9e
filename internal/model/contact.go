// internal/model/contact.go
package model

type Contact struct {
    ID               int    `db:"id" json:"id"`
    OrgID            int    `db:"org_id" json:"org_id"`
    Phone            string `db:"phone" json:"phone"`
    FirstName        string `db:"first_name" json:"first_name"`
    LastName         string `db:"last_name" json:"last_name"`
    Location         string `db:"location" json:"location"`
    PreferredProduct string `db:"preferred_product" json:"preferred_product"`
    DoNotCall        bool   `db:"do_not_call" json:"do_not_call"`
}

// DisplayName joins first and last name for dispatch payloads.
func (c *Contact) DisplayName() string {
    if c.FirstName == "" {
        return c.LastName
    }
    if c.LastName == "" {
        return c.FirstName
    }
    return c.FirstName + " " + c.LastName
}
