package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPublisher_TopicFallback(t *testing.T) {
	t.Parallel()

	p := NewPublisher(nil, "", zap.NewExample())
	require.Equal(t, LoanEventsTopic, p.topic)

	p = NewPublisher(nil, "loan-events-staging", zap.NewExample())
	require.Equal(t, "loan-events-staging", p.topic)
}
