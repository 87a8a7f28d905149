package crypto

import (
	"fmt"

	"github.com/rzbill/dashgate/pkg/document"
)

// EncryptDashboards returns a copy of doc with every dashboard URL
// encrypted. Values that fail to encrypt stay in plaintext.
func (c *Cipher) EncryptDashboards(doc *document.Document) *document.Document {
	out := doc.Clone()
	for name, url := range out.Dashboards {
		out.Dashboards[name] = c.Encrypt(url)
	}
	out.Encrypted = true
	out.EncryptionVersion = document.EncryptionVersion
	return out
}

// EncryptDashboardsStrict is EncryptDashboards that fails on the first value
// it cannot encrypt, so no plaintext URL leaves the process.
func (c *Cipher) EncryptDashboardsStrict(doc *document.Document) (*document.Document, error) {
	out := doc.Clone()
	for name, url := range out.Dashboards {
		enc, err := c.EncryptStrict(url)
		if err != nil {
			return nil, fmt.Errorf("dashboard %q: %w", name, err)
		}
		out.Dashboards[name] = enc
	}
	out.Encrypted = true
	out.EncryptionVersion = document.EncryptionVersion
	return out, nil
}

// DecryptDashboards returns a copy of doc with plaintext URLs. A document
// not flagged as encrypted is returned as an unchanged copy.
func (c *Cipher) DecryptDashboards(doc *document.Document) *document.Document {
	out := doc.Clone()
	if !out.Encrypted {
		return out
	}
	for name, value := range out.Dashboards {
		out.Dashboards[name] = c.Decrypt(value)
	}
	out.Encrypted = false
	out.EncryptionVersion = ""
	return out
}
