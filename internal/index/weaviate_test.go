package index

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
)

func TestIsNotFound(t *testing.T) {
	notFound := &fault.WeaviateClientError{
		IsUnexpectedStatusCode: true,
		StatusCode:             http.StatusNotFound,
	}
	assert.True(t, isNotFound(notFound))
	assert.True(t, isNotFound(fmt.Errorf("fetch: %w", notFound)))

	// Server errors and transport failures must not read as absent
	assert.False(t, isNotFound(&fault.WeaviateClientError{
		IsUnexpectedStatusCode: true,
		StatusCode:             http.StatusInternalServerError,
	}))
	assert.False(t, isNotFound(&fault.WeaviateClientError{
		DerivedFromError: errors.New("connection refused"),
	}))
	assert.False(t, isNotFound(errors.New("connection refused")))
	assert.False(t, isNotFound(nil))
}
