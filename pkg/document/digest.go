package document

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

type digestView struct {
	Dashboards              map[string]string `json:"dashboards"`
	AuthorizedUsers         []string          `json:"authorized_users"`
	AdminUsers              []string          `json:"admin_users"`
	RequireCorporateNetwork bool              `json:"require_corporate_network"`
}

// Digest fingerprints the content an admin edits: dashboards, both user
// sets, and the network gate. Version, timestamps, changelog and the
// encryption flag are ignored, so doc must hold plaintext URLs.
func Digest(doc *Document) string {
	view := digestView{
		Dashboards:              doc.Dashboards,
		AuthorizedUsers:         normalizeSet(doc.AuthorizedUsers),
		AdminUsers:              normalizeSet(doc.AdminUsers),
		RequireCorporateNetwork: doc.RequireCorporateNetwork,
	}
	if view.Dashboards == nil {
		view.Dashboards = map[string]string{}
	}
	// Map keys are emitted sorted, so the encoding is canonical.
	b, _ := json.Marshal(view)
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func normalizeSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if _, dup := seen[s]; dup || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
