// File: internal/translate/template.go
package translate

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnglishTemplate returns a starter data file keyed by English field names,
// covering the fields a typical short-stay application needs.
func EnglishTemplate() map[string]any {
	return map[string]any{
		"_instructions": "Fill in the values below. All field names are in English.",

		// Personal details
		"surname":              "",
		"first_name":           "",
		"birth_name":           "",
		"date_of_birth":        "", // DD.MM.YYYY
		"place_of_birth":       "",
		"country_of_birth":     "",
		"gender":               "", // Male / Female
		"marital_status":       "", // Single / Married / Divorced / Widowed
		"nationality":          "",
		"nationality_at_birth": "",

		// Occupation
		"occupation":            "",
		"employer":              "",
		"employer_street":       "",
		"employer_house_number": "",
		"employer_postal_code":  "",
		"employer_city":         "",
		"employer_country":      "",

		// Home address
		"street":       "",
		"house_number": "",
		"apartment":    "",
		"postal_code":  "",
		"city":         "",
		"country":      "",
		"phone":        "",
		"email":        "",

		// Passport
		"passport_type":            "Ordinary passport",
		"passport_number":          "",
		"national_id":              "",
		"passport_issue_date":      "", // DD.MM.YYYY
		"passport_expiry_date":     "", // DD.MM.YYYY
		"passport_issuing_country": "",
		"passport_issued_by":       "",
		"passport_issue_place":     "",

		// Travel details
		"purpose_of_visit":    "", // Tourism / Business / Visit family or friends
		"purpose_description": "",
		"additional_info":     "",
		"destination":         "Germany",
		"number_of_entries":   "Single entry",
		"visa_start_date":     "", // DD.MM.YYYY
		"visa_end_date":       "", // DD.MM.YYYY

		// Inviting person
		"reference_type":        "Inviting person",
		"inviter_surname":       "",
		"inviter_first_name":    "",
		"inviter_gender":        "",
		"inviter_date_of_birth": "",
		"inviter_birth_place":   "",
		"inviter_nationality":   "",
		"inviter_street":        "",
		"inviter_house_number":  "",
		"inviter_postal_code":   "",
		"inviter_city":          "",
		"inviter_country":       "",
		"inviter_phone":         "",
		"inviter_email":         "",

		// Cost coverage
		"applicant_pays":   true,
		"third_party_pays": false,
		"inviter_pays":     false,

		// Means of support
		"cash":                  true,
		"credit_cards":          true,
		"accommodation_prepaid": true,
		"transport_prepaid":     true,
	}
}

// WriteEnglishTemplate writes the template as indented JSON.
func WriteEnglishTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating template directory: %w", err)
	}
	raw, err := json.MarshalIndent(EnglishTemplate(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
