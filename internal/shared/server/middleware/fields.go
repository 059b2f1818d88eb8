package middleware

import "github.com/gin-gonic/gin"

const (
	documentIDKey       = "documentId"
	statusTransitionKey = "statusTransition"
)

// SetDocumentID records the document a request touched for the request log.
func SetDocumentID(c *gin.Context, id string) {
	c.Set(documentIDKey, id)
}

// SetStatusTransition records a status change caused by the request, e.g. "->processing".
func SetStatusTransition(c *gin.Context, transition string) {
	c.Set(statusTransitionKey, transition)
}
