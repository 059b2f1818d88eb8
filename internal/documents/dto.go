package documents

import "time"

// SummaryResponse is returned by upload.
type SummaryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListItem is a document without its extracted text.
type ListItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	FileSize     int64     `json:"fileSize"`
	MimeType     string    `json:"mimeType"`
	Status       Status    `json:"status"`
	PageCount    *int      `json:"pageCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DetailResponse is a single document with its extracted text when ready.
type DetailResponse struct {
	ListItem
	ExtractedText *string `json:"extractedText,omitempty"`
}

func toSummary(doc Document) SummaryResponse {
	return SummaryResponse{
		ID:        doc.ID,
		Name:      doc.Name,
		Status:    doc.Status,
		CreatedAt: doc.CreatedAt,
	}
}

func toListItem(doc Document) ListItem {
	item := ListItem{
		ID:           doc.ID,
		Name:         doc.Name,
		OriginalName: doc.OriginalName,
		FileSize:     doc.SizeBytes,
		MimeType:     doc.MimeType,
		Status:       doc.Status,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	if doc.Status == StatusReady {
		item.PageCount = doc.PageCount
	}
	return item
}

func toDetail(doc Document) DetailResponse {
	resp := DetailResponse{ListItem: toListItem(doc)}
	if doc.Status == StatusReady {
		resp.ExtractedText = doc.ExtractedText
	}
	return resp
}
