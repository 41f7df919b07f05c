package providers

import (
	"fmt"
	"remitscout-backend/internal/components/textutil"
	"slices"
)

// Profile is the structured description of a money transfer provider.
type Profile struct {
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Established     *int     `json:"established"`
	Headquarters    *string  `json:"headquarters"`
	Regulations     []string `json:"regulations"`
	URL             *string  `json:"url"`
	TransferMethods []string `json:"transferMethods"`
	PayoutMethods   []string `json:"payoutMethods"`
}

// clone deep copies pointers and slices so merges never write into shared values.
func (p Profile) clone() Profile {
	out := p
	if p.Established != nil {
		v := *p.Established
		out.Established = &v
	}
	if p.Headquarters != nil {
		v := *p.Headquarters
		out.Headquarters = &v
	}
	if p.URL != nil {
		v := *p.URL
		out.URL = &v
	}
	out.Regulations = slices.Clone(p.Regulations)
	out.TransferMethods = slices.Clone(p.TransferMethods)
	out.PayoutMethods = slices.Clone(p.PayoutMethods)
	return out
}

func defaultDescription(name string) string {
	return fmt.Sprintf("%s is a money transfer provider.", name)
}

// defaultProfile is the minimal profile every code resolves to when nothing else is known.
func defaultProfile(code string) Profile {
	name := textutil.TitleCase(code)
	if name == "" {
		name = "Unknown"
	}
	return Profile{
		Code:            code,
		Name:            name,
		Description:     defaultDescription(name),
		Regulations:     []string{},
		TransferMethods: []string{"bank_transfer"},
		PayoutMethods:   []string{"bank_deposit"},
	}
}
