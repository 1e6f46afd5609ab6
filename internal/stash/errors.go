package stash

import (
	"fmt"
	"strings"
)

// HTTPError is returned when the server answers with a non-200 status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: HTTP %d: %s", e.StatusCode, e.Body)
}

// Unauthorized reports whether the server rejected the API key.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// GraphQLError carries the errors reported in a GraphQL response.
type GraphQLError struct {
	Operation string
	Messages  []string
}

func newGraphQLError(op string, errs []graphQLError) *GraphQLError {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return &GraphQLError{Operation: op, Messages: msgs}
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("graphql error in %s: %s", e.Operation, strings.Join(e.Messages, "; "))
}
