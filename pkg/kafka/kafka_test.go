package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryEvent struct {
	Query    string `json:"query"`
	Returned int    `json:"returned"`
}

func TestEncodeDecode(t *testing.T) {
	messages, err := encode([]Event{
		{Key: "hamlet", Value: queryEvent{Query: "hamlet", Returned: 2}},
		{Key: "", Value: map[string]int{"n": 1}},
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, []byte("hamlet"), messages[0].Key)
	assert.JSONEq(t, `{"query":"hamlet","returned":2}`, string(messages[0].Value))

	got, err := DecodeJSON[queryEvent](messages[0].Value)
	require.NoError(t, err)
	assert.Equal(t, queryEvent{Query: "hamlet", Returned: 2}, got)

	_, err = DecodeJSON[queryEvent]([]byte("{"))
	assert.Error(t, err)
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode([]Event{{Key: "x", Value: make(chan int)}})
	assert.Error(t, err)
}
