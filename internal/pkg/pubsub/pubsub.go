package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelAnalysisProgress = "analysis_progress"
)

// ProgressMessage 进度消息
type ProgressMessage struct {
	Type           string `json:"type"`
	UserID         int64  `json:"user_id"`
	ReportID       int64  `json:"report_id"`
	ProjectID      string `json:"project_id"`
	Status         string `json:"status"`
	Phase          string `json:"phase"`
	Percentage     int    `json:"percentage"`
	ProcessedFiles int    `json:"processed_files"`
	TotalFiles     int    `json:"total_files"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// 进度阶段常量
const (
	PhaseRetrieving   = "retrieving"
	PhaseAnalyzing    = "analyzing"
	PhaseSynthesizing = "synthesizing"
	PhaseDone         = "done"
)

// 阶段对应的消息
var PhaseMessages = map[string]string{
	PhaseRetrieving:   "正在检索相关文件",
	PhaseAnalyzing:    "正在逐文件分析",
	PhaseSynthesizing: "正在汇总整体回答",
	PhaseDone:         "分析完成",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "analysis_progress"

	// 自动填充阶段消息
	if msg.Message == "" && msg.Phase != "" {
		if message, ok := PhaseMessages[msg.Phase]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnalysisProgress, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelAnalysisProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
