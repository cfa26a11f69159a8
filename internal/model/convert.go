package model

// StoredCV is the domain-facing shape of a CV document handed to callers
// outside the vault (dashboards, analysis). Conversions are total: every
// field mapping is enumerated.
type StoredCV struct {
	ID        string
	Name      string
	Content   string
	Data      string
	MimeType  string
	IsActive  bool
	CreatedAt string
	UpdatedAt string
}

// ToStoredCV converts a vault document to the stored-CV shape.
func ToStoredCV(d VaultDocument) StoredCV {
	return StoredCV{
		ID:        d.ID,
		Name:      d.Name,
		Content:   d.Content,
		Data:      d.Data,
		MimeType:  d.MimeType,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: d.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ToStoredCVs converts all cv-type documents, preserving order.
func ToStoredCVs(docs []VaultDocument) []StoredCV {
	out := make([]StoredCV, 0, len(docs))
	for _, d := range docs {
		if d.Type != DocumentCV {
			continue
		}
		out = append(out, ToStoredCV(d))
	}
	return out
}
