package document

import "time"

// SeedAuthor signs the changelog entry of a generated document.
const SeedAuthor = "Sistema"

var (
	seedDashboards = map[string]string{
		"Onsite/Offsite":             "https://platform-us2.datorama.com/external/dashboard?embedpage=bab9f8f9-6567-4383-a166-b867db0f46dc",
		"Display Onsite Attribution": "https://platform-us2.datorama.com/external/dashboard?embedpage=f06ec4c2-c795-4c3b-a0b8-bfdc1883d6be",
	}
	seedUsers  = []string{"m0b0xkx", "l0p08ai", "a0r0xe9", "j0r14n8", "m0g0tiz"}
	seedAdmins = []string{"m0g0tiz"}
)

// Seed builds the document used on first run when neither the remote copy
// nor a cache is reachable. principal is authorized when not already seeded.
func Seed(principal string, now time.Time) *Document {
	doc := New()
	for k, v := range seedDashboards {
		doc.Dashboards[k] = v
	}
	doc.AuthorizedUsers = append(doc.AuthorizedUsers, seedUsers...)
	doc.AdminUsers = append(doc.AdminUsers, seedAdmins...)
	doc.Changelog = append(doc.Changelog, ChangelogEntry{
		Version: DefaultVersion,
		Date:    now.Format(DateLayout),
		Author:  SeedAuthor,
		Changes: []string{"Default configuration generated automatically"},
	})
	doc.Touch(now)
	doc.UsingLocalConfig = true

	if principal != "" && !Contains(doc.AuthorizedUsers, principal) {
		doc.AuthorizedUsers = append(doc.AuthorizedUsers, principal)
	}
	return doc
}
