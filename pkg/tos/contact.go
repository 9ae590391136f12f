package tos

import (
	"context"
	"log"
)

// Contact roles.
const (
	RoleOwner    = "owner"
	RoleOperator = "operator"
	RoleContact  = "contact"
)

// Organisations with special treatment.
const (
	OrgIMO = "Veðurstofa Íslands"
	OrgLMI = "Landmælingar Íslands"
)

// ContactRecord is a contact as returned by the entity_contacts endpoint.
type ContactRecord struct {
	IDContact    int    `json:"id_contact"`
	Role         string `json:"role"`
	RoleIs       string `json:"role_is"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Comment      string `json:"comment"`
	PhonePrimary string `json:"phone_primary"`
	SSID         Value  `json:"ssid"`
}

// Contact is an organisation with a role at a station.
type Contact struct {
	IDContact      int    `json:"id_entity,omitempty"`
	RoleIs         string `json:"role_is"`
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	Comment        string `json:"comment,omitempty"`
	PhonePrimary   string `json:"phone_primary,omitempty"`
	SSID           string `json:"ssid,omitempty"`
	Abbreviation   string `json:"abbreviation,omitempty"`
	NameEn         string `json:"name_en,omitempty"`
	Email          string `json:"email,omitempty"`
	PrimaryContact string `json:"primary_contact,omitempty"`
	Department     string `json:"department,omitempty"`
	AddressEn      string `json:"address_en,omitempty"`
	MainURL        string `json:"main_url,omitempty"`
	MainURLEn      string `json:"main_url_en,omitempty"`
}

// Contacts maps a role to its contact. After Client.Contacts owner, operator and contact are always set.
type Contacts map[string]Contact

// Owner returns the station owner.
func (c Contacts) Owner() Contact { return c[RoleOwner] }

// Operator returns the station operator.
func (c Contacts) Operator() Contact { return c[RoleOperator] }

func defaultOwner() Contact {
	return enrich(Contact{RoleIs: "Eigandi stöðvar", Name: OrgIMO})
}

func defaultOperator(name string) Contact {
	return enrich(Contact{RoleIs: "Rekstraraðili stöðvar", Name: name})
}

// enrich adds the english and web details known for IMO.
func enrich(c Contact) Contact {
	if c.Name != OrgIMO {
		return c
	}
	c.Abbreviation = "IMO"
	c.NameEn = "Icelandic Meteorological Office"
	c.Email = "gnss-epos@vedur.is"
	c.PrimaryContact = "GNSS Operator"
	c.Department = "Infrastructure Division"
	c.AddressEn = "Bústaðarvegur 7-9, 105 Reykjavík, Iceland"
	c.MainURL = "https://vedur.is"
	c.MainURLEn = "https://en.vedur.is"
	return c
}

// BuildContacts turns raw contact records into role keyed contacts and applies the fallbacks:
// without an owner IMO is owner and operator, LMI owned stations are operated by LMI,
// a missing contact is the owner and a missing operator is the contact.
func BuildContacts(recs []ContactRecord, logger *log.Logger) Contacts {
	if logger == nil {
		logger = log.Default()
	}

	contacts := make(Contacts)
	for _, r := range recs {
		contacts[r.Role] = enrich(Contact{
			IDContact:    r.IDContact,
			RoleIs:       r.RoleIs,
			Name:         r.Name,
			Address:      r.Address,
			Comment:      r.Comment,
			PhonePrimary: r.PhonePrimary,
			SSID:         r.SSID.Str,
		})
	}

	owner, ok := contacts[RoleOwner]
	if !ok {
		logger.Printf("WARN: no station owner found, setting default %q", OrgIMO)
		owner = defaultOwner()
		contacts[RoleOwner] = owner
		if _, ok := contacts[RoleOperator]; !ok {
			contacts[RoleOperator] = defaultOperator(OrgIMO)
		}
	}

	if owner.Name == OrgLMI {
		contacts[RoleOperator] = defaultOperator(OrgLMI)
	}
	if _, ok := contacts[RoleContact]; !ok {
		contacts[RoleContact] = owner
	}
	if _, ok := contacts[RoleOperator]; !ok {
		contacts[RoleOperator] = contacts[RoleContact]
	}
	return contacts
}

// Contacts fetches the contacts of a station. A failing request does not return an error,
// the default owner and operator are used instead.
func (c *Client) Contacts(ctx context.Context, id int) Contacts {
	recs, err := c.ContactRecords(ctx, id)
	if err != nil {
		c.logger.Printf("WARN: could not fetch contacts of entity %d: %v", id, err)
		recs = nil
	}
	return BuildContacts(recs, c.logger)
}
