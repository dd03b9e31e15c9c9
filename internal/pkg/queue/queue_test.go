package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestNewQueue(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue")

	assert.NotNil(t, q)
	assert.Equal(t, "test_queue", q.queueName)
	assert.Equal(t, client, q.client)
}

func TestQueue_Push(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue")
	ctx := context.Background()

	t.Run("push single message", func(t *testing.T) {
		msg := &AnalysisMessage{
			ReportID:  1,
			ProjectID: "proj-abc",
			UserID:    10,
			Type:      "EXPLANATION",
			Query:     "鉴权是怎么实现的",
			Languages: []string{"go"},
		}

		err := q.Push(ctx, msg)
		require.NoError(t, err)

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), length)
	})

	t.Run("push multiple messages", func(t *testing.T) {
		client.Del(ctx, "test_queue2")

		q2 := NewQueue(client, "test_queue2")

		for i := 0; i < 5; i++ {
			msg := &AnalysisMessage{
				ReportID: int64(i),
			}
			err := q2.Push(ctx, msg)
			require.NoError(t, err)
		}

		length, err := q2.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), length)
	})
}

func TestQueue_Pop(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("pop from queue with messages", func(t *testing.T) {
		q := NewQueue(client, "test_pop_queue")

		msg := &AnalysisMessage{
			ReportID:  42,
			ProjectID: "proj-xyz",
			UserID:    20,
			Type:      "VULNERABILITY",
			FilePath:  "src/auth.py",
			Languages: []string{"python", "javascript"},
		}

		err := q.Push(ctx, msg)
		require.NoError(t, err)

		result, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, int64(42), result.ReportID)
		assert.Equal(t, "proj-xyz", result.ProjectID)
		assert.Equal(t, int64(20), result.UserID)
		assert.Equal(t, "VULNERABILITY", result.Type)
		assert.Equal(t, "src/auth.py", result.FilePath)
		assert.Equal(t, []string{"python", "javascript"}, result.Languages)
	})

	t.Run("pop FIFO order", func(t *testing.T) {
		q := NewQueue(client, "test_fifo_queue")

		for i := 1; i <= 3; i++ {
			msg := &AnalysisMessage{ReportID: int64(i)}
			err := q.Push(ctx, msg)
			require.NoError(t, err)
		}

		for i := 1; i <= 3; i++ {
			result, err := q.Pop(ctx, time.Second)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, int64(i), result.ReportID)
		}
	})

	t.Run("pop from empty queue times out", func(t *testing.T) {
		q := NewQueue(client, "test_empty_queue")

		result, err := q.Pop(ctx, 10*time.Millisecond)

		// miniredis doesn't support BRPop timeout properly, so check for nil or error
		if err == nil {
			assert.Nil(t, result)
		}
	})
}

func TestQueue_Length(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("length of empty queue", func(t *testing.T) {
		q := NewQueue(client, "test_length_empty")

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), length)
	})

	t.Run("length after push and pop", func(t *testing.T) {
		q := NewQueue(client, "test_length_ops")

		for i := 0; i < 3; i++ {
			msg := &AnalysisMessage{ReportID: int64(i)}
			err := q.Push(ctx, msg)
			require.NoError(t, err)
		}

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), length)

		_, err = q.Pop(ctx, time.Second)
		require.NoError(t, err)

		length, err = q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), length)
	})
}

func TestQueue_RoundTrip(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	q := NewQueue(client, "test_roundtrip")

	original := &AnalysisMessage{
		ReportID:  999,
		ProjectID: "proj-roundtrip",
		UserID:    777,
		Type:      "FULL",
		Query:     "整体架构",
		FilePath:  "cmd/main.go",
		Languages: []string{"go", "typescript"},
	}

	err := q.Push(ctx, original)
	require.NoError(t, err)

	result, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, original.ReportID, result.ReportID)
	assert.Equal(t, original.ProjectID, result.ProjectID)
	assert.Equal(t, original.UserID, result.UserID)
	assert.Equal(t, original.Type, result.Type)
	assert.Equal(t, original.Query, result.Query)
	assert.Equal(t, original.FilePath, result.FilePath)
	assert.Equal(t, original.Languages, result.Languages)
}

func TestQueue_MultipleQueues(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	q1 := NewQueue(client, "queue_1")
	q2 := NewQueue(client, "queue_2")

	msg1 := &AnalysisMessage{ReportID: 1}
	msg2 := &AnalysisMessage{ReportID: 2}

	err := q1.Push(ctx, msg1)
	require.NoError(t, err)

	err = q2.Push(ctx, msg2)
	require.NoError(t, err)

	len1, _ := q1.Length(ctx)
	len2, _ := q2.Length(ctx)
	assert.Equal(t, int64(1), len1)
	assert.Equal(t, int64(1), len2)

	result1, _ := q1.Pop(ctx, time.Second)
	result2, _ := q2.Pop(ctx, time.Second)

	assert.Equal(t, int64(1), result1.ReportID)
	assert.Equal(t, int64(2), result2.ReportID)
}
