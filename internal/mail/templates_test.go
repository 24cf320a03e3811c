package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Render_AllKinds(t *testing.T) {
	p := Payload{
		UserName: "Alice",
		BookName: "The Go Programming Language",
		DueDate:  "2025-08-15",
	}

	for kind := range templates {
		subject, body, err := render(kind, p)
		require.NoError(t, err, "kind %s", kind)
		assert.NotEmpty(t, subject)
		assert.Contains(t, body, "Alice")
		assert.Contains(t, body, "The Go Programming Language")
	}
}

func Test_Render_DueDateInterpolated(t *testing.T) {
	_, body, err := render(KindBookIssued, Payload{UserName: "A", BookName: "B", DueDate: "2025-08-15"})
	require.NoError(t, err)
	assert.Contains(t, body, "2025-08-15")
}

func Test_Render_UnknownKind(t *testing.T) {
	_, _, err := render(Kind("postcard"), Payload{})
	require.Error(t, err)
}
