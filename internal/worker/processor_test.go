package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/index"
	"github.com/qs3c/codelens_go_server/internal/model"
	"github.com/qs3c/codelens_go_server/internal/pkg/llm"
	"github.com/qs3c/codelens_go_server/internal/pkg/pubsub"
	"github.com/qs3c/codelens_go_server/internal/pkg/queue"
	"github.com/qs3c/codelens_go_server/internal/repository"
	"github.com/qs3c/codelens_go_server/internal/testutil"
)

// embedProvider 固定向量：与查询词沾边的文本靠近查询向量
type embedProvider struct{}

func (embedProvider) Summarize(ctx context.Context, filePath, content string) (string, error) {
	return "概要: " + filePath, nil
}

func (embedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.Contains(strings.ToLower(text), "auth") {
		return []float64{1, 0}, nil
	}
	return []float64{0, 1}, nil
}

// fakeExplainer 可注入行为的模型桩
type fakeExplainer struct {
	mu             sync.Mutex
	explainCalls   int
	explainedFiles []string
	onExplain      func()
	explainErr     error
	synthesizeErr  error
	synthesis      string
}

func (f *fakeExplainer) ExplainSymbols(ctx context.Context, query, filePath string, symbols []llm.SymbolInput) ([]llm.Explanation, error) {
	f.mu.Lock()
	f.explainCalls++
	f.explainedFiles = append(f.explainedFiles, filePath)
	hook := f.onExplain
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if f.explainErr != nil {
		return nil, f.explainErr
	}

	out := make([]llm.Explanation, len(symbols))
	for i, sym := range symbols {
		out[i] = llm.Explanation{
			Summary:    "摘要: " + sym.Name,
			Detailed:   "详细说明: " + sym.Name,
			Complexity: "低",
		}
	}
	return out, nil
}

func (f *fakeExplainer) Synthesize(ctx context.Context, query string, sections []string) (string, error) {
	if f.synthesizeErr != nil {
		return "", f.synthesizeErr
	}
	if f.synthesis != "" {
		return f.synthesis, nil
	}
	return "整体回答: " + query, nil
}

type processorEnv struct {
	processor *Processor
	explainer *fakeExplainer
	db        *gorm.DB
	cfg       *config.Config
	indexRepo *repository.IndexRepository
}

func setupProcessor(t *testing.T, publisher *pubsub.Publisher) *processorEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{
		Analysis: config.AnalysisConfig{TopK: 2, BatchSize: 2},
	}

	indexRepo := repository.NewIndexRepository(db)
	explainer := &fakeExplainer{}

	processor := NewProcessor(
		repository.NewReportRepository(db),
		repository.NewExplanationRepository(db),
		repository.NewVulnerabilityRepository(db),
		repository.NewProjectRepository(db),
		index.NewIndexer(indexRepo, embedProvider{}),
		explainer,
		publisher,
		cfg,
	)

	return &processorEnv{
		processor: processor,
		explainer: explainer,
		db:        db,
		cfg:       cfg,
		indexRepo: indexRepo,
	}
}

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// 索引两个命中文件，auth.js 通过相对导入牵出 util.js
func seedTargetedProject(t *testing.T, env *processorEnv, userID int64) (*model.Project, *model.AnalysisReport) {
	t.Helper()

	dir := t.TempDir()
	writeSource(t, dir, "auth.js", "import helper from './util'\n\nfunction login(user) {\n  return helper(user)\n}\n")
	writeSource(t, dir, "db.js", "function connect() {\n  return null\n}\n")
	writeSource(t, dir, "util.js", "export function helper(u) {\n  return u\n}\n")
	writeSource(t, dir, "unrelated.js", "function misc() {\n  return 1\n}\n")

	project := testutil.TestProject(t, env.db, userID,
		testutil.WithRootDir(dir), testutil.WithLanguages("javascript"))

	// 只有 auth.js 和 db.js 靠近查询向量
	for file, vec := range map[string][]float64{
		"auth.js":      {1, 0},
		"db.js":        {0.9, 0.1},
		"unrelated.js": {0, 1},
	} {
		require.NoError(t, env.indexRepo.Upsert(&model.FileIndexEntry{
			ProjectID: project.ID,
			FilePath:  file,
			Summary:   "概要: " + file,
			Embedding: vec,
			Language:  "javascript",
		}))
	}

	report := testutil.TestReport(t, env.db, project.ID, userID,
		testutil.WithType(model.TypeExplanation), testutil.WithQuery("auth 是如何实现的"))
	return project, report
}

func messageFor(report *model.AnalysisReport) *queue.AnalysisMessage {
	return &queue.AnalysisMessage{
		ReportID:  report.ID,
		ProjectID: report.ProjectID,
		UserID:    report.UserID,
		Type:      report.Type,
		Query:     report.Query,
		Languages: []string{"javascript"},
	}
}

func TestProcessor_TargetedExplanation(t *testing.T) {
	env := setupProcessor(t, nil)
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	_, report := seedTargetedProject(t, env, user.ID)

	require.NoError(t, env.processor.Process(ctx, messageFor(report)))

	got, err := repository.NewReportRepository(env.db).GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress.Percentage)

	// 命中 2 个文件，依赖展开牵出 util.js，共 3 个
	assert.Equal(t, "targeted", got.Result["mode"])
	assert.EqualValues(t, 3, got.Result["files_analyzed"])
	assert.Equal(t, "整体回答: auth 是如何实现的", got.Result["synthesis"])
	assert.Equal(t, "auth 是如何实现的", got.Result["query"])
	assert.Equal(t, []interface{}{"javascript"}, got.Result["languages"])
	assert.EqualValues(t, got.Result["total_symbols"], got.Result["symbols_explained"])
	assert.NotZero(t, got.Result["total_symbols"])

	rows, err := repository.NewExplanationRepository(env.db).ListByReport(report.ID)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	files := map[string]bool{}
	for _, row := range rows {
		files[row.FilePath] = true
		assert.Contains(t, row.Summary, "摘要:")
	}
	assert.True(t, files["auth.js"])
	assert.True(t, files["util.js"])
	assert.False(t, files["unrelated.js"], "未命中且不在依赖闭包中的文件不参与分析")
}

func TestProcessor_ZeroHitsFallsBackToFullScan(t *testing.T) {
	env := setupProcessor(t, nil)
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)

	dir := t.TempDir()
	writeSource(t, dir, "a.js", "function a() {\n  return 1\n}\n")
	writeSource(t, dir, "b.js", "function b() {\n  return 2\n}\n")

	project := testutil.TestProject(t, env.db, user.ID,
		testutil.WithRootDir(dir), testutil.WithLanguages("javascript"))
	// 索引为空，检索零命中
	report := testutil.TestReport(t, env.db, project.ID, user.ID,
		testutil.WithType(model.TypeExplanation), testutil.WithQuery("这个项目是做什么的"))

	require.NoError(t, env.processor.Process(ctx, messageFor(report)))

	got, err := repository.NewReportRepository(env.db).GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "full", got.Result["mode"])
	assert.EqualValues(t, 2, got.Result["files_analyzed"])
}

func TestProcessor_CancellationCheckpoint(t *testing.T) {
	env := setupProcessor(t, nil)
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)

	dir := t.TempDir()
	writeSource(t, dir, "a.js", "function a() {\n  return 1\n}\n")
	writeSource(t, dir, "b.js", "function b() {\n  return 2\n}\n")
	writeSource(t, dir, "c.js", "function c() {\n  return 3\n}\n")

	project := testutil.TestProject(t, env.db, user.ID,
		testutil.WithRootDir(dir), testutil.WithLanguages("javascript"))
	report := testutil.TestReport(t, env.db, project.ID, user.ID,
		testutil.WithType(model.TypeExplanation))

	reportRepo := repository.NewReportRepository(env.db)

	// 第一批解释进行中被外部取消，下一个检查点生效
	env.explainer.onExplain = func() {
		ok, err := reportRepo.Cancel(report.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, env.processor.Process(ctx, messageFor(report)))

	got, err := reportRepo.GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status, "取消状态不被覆盖")
	assert.Less(t, env.explainer.explainCalls, 3, "取消后不再处理剩余文件")
}

func TestProcessor_SkipsNonPendingReport(t *testing.T) {
	env := setupProcessor(t, nil)
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	project := testutil.TestProject(t, env.db, user.ID)
	report := testutil.TestReport(t, env.db, project.ID, user.ID,
		testutil.WithStatus(model.StatusCancelled))

	require.NoError(t, env.processor.Process(ctx, messageFor(report)))

	got, err := repository.NewReportRepository(env.db).GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Zero(t, env.explainer.explainCalls)
}

func TestProcessor_SynthesisFailureKeepsRows(t *testing.T) {
	env := setupProcessor(t, nil)
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	_, report := seedTargetedProject(t, env, user.ID)

	env.explainer.synthesizeErr = &llm.ProviderError{StatusCode: 503, Message: "service unavailable"}

	err := env.processor.Process(ctx, messageFor(report))
	require.Error(t, err)

	got, err := repository.NewReportRepository(env.db).GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "综合解释生成失败")

	// 已落库的逐符号解释保留
	rows, err := repository.NewExplanationRepository(env.db).ListByReport(report.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestProcessor_BatchFailureContinues(t *testing.T) {
	env := setupProcessor(t, nil)
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)

	dir := t.TempDir()
	writeSource(t, dir, "a.js", "function a() {\n  return 1\n}\n")
	writeSource(t, dir, "b.js", "function b() {\n  return 2\n}\n")

	project := testutil.TestProject(t, env.db, user.ID,
		testutil.WithRootDir(dir), testutil.WithLanguages("javascript"))
	report := testutil.TestReport(t, env.db, project.ID, user.ID,
		testutil.WithType(model.TypeExplanation))

	env.explainer.explainErr = &llm.ProviderError{StatusCode: 500, Message: "boom"}

	require.NoError(t, env.processor.Process(ctx, messageFor(report)))

	got, err := repository.NewReportRepository(env.db).GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.EqualValues(t, 0, got.Result["symbols_explained"])
	assert.Equal(t, 2, env.explainer.explainCalls, "单批失败后续文件继续")
}

func TestProcessor_VulnerabilityScan(t *testing.T) {
	env := setupProcessor(t, nil)
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)

	dir := t.TempDir()
	writeSource(t, dir, "danger.js",
		"function run(input) {\n  return eval(input)\n}\n\nfunction safe() {\n  return 1\n}\n")

	project := testutil.TestProject(t, env.db, user.ID,
		testutil.WithRootDir(dir), testutil.WithLanguages("javascript"))
	report := testutil.TestReport(t, env.db, project.ID, user.ID,
		testutil.WithType(model.TypeVulnerability))

	require.NoError(t, env.processor.Process(ctx, messageFor(report)))

	got, err := repository.NewReportRepository(env.db).GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Zero(t, env.explainer.explainCalls, "漏洞扫描不调用模型")

	vulns, err := repository.NewVulnerabilityRepository(env.db).ListByReport(report.ID)
	require.NoError(t, err)
	require.NotEmpty(t, vulns)
	assert.Equal(t, "danger.js", vulns[0].FilePath)
	assert.Equal(t, "run", vulns[0].SymbolName)

	summary := got.Result["vulnerabilities"].(map[string]interface{})
	assert.EqualValues(t, len(vulns), summary["total"])
}

func TestProcessor_FullAnalysis(t *testing.T) {
	env := setupProcessor(t, nil)
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)

	dir := t.TempDir()
	writeSource(t, dir, "app.js",
		"function handle(a, b, c, d, e, f) {\n  return eval(a)\n}\n")

	project := testutil.TestProject(t, env.db, user.ID,
		testutil.WithRootDir(dir), testutil.WithLanguages("javascript"))
	report := testutil.TestReport(t, env.db, project.ID, user.ID,
		testutil.WithType(model.TypeFull))

	require.NoError(t, env.processor.Process(ctx, messageFor(report)))

	got, err := repository.NewReportRepository(env.db).GetByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	// 综合分析同时产出解释、漏洞与建议
	assert.EqualValues(t, 1, got.Result["total_symbols"])
	assert.EqualValues(t, 1, got.Result["symbols_explained"])
	assert.Equal(t, []interface{}{"javascript"}, got.Result["languages"])

	vulnSummary := got.Result["vulnerabilities"].(map[string]interface{})
	assert.EqualValues(t, 1, vulnSummary["total"])

	recs := got.Result["recommendations"].([]interface{})
	require.Len(t, recs, 1)
	assert.EqualValues(t, 1, got.Result["total_recommendations"])
	byPriority := got.Result["by_priority"].(map[string]interface{})
	assert.EqualValues(t, 1, byPriority["MEDIUM"])

	// 综合分析额外附带统计摘要
	summary := got.Result["summary"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["vulnerabilities_found"])
	assert.EqualValues(t, 1, summary["explanations_generated"])
	assert.EqualValues(t, 1, summary["recommendations_count"])
	assert.NotEmpty(t, summary["analysis_date"])
}

func TestProcessor_ProgressIsMonotonic(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	env := setupProcessor(t, pubsub.NewPublisher(client))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var percentages []int
	subscriber := pubsub.NewSubscriber(client)
	go subscriber.Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
		mu.Lock()
		percentages = append(percentages, msg.Percentage)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	user := testutil.TestUser(t, env.db)
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		writeSource(t, dir, fmt.Sprintf("f%d.js", i), "function f() {\n  return 1\n}\n")
	}
	project := testutil.TestProject(t, env.db, user.ID,
		testutil.WithRootDir(dir), testutil.WithLanguages("javascript"))
	report := testutil.TestReport(t, env.db, project.ID, user.ID,
		testutil.WithType(model.TypeExplanation))

	require.NoError(t, env.processor.Process(ctx, messageFor(report)))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, percentages)
	for i := 1; i < len(percentages); i++ {
		assert.GreaterOrEqual(t, percentages[i], percentages[i-1], "进度百分比不回退")
	}
	assert.Equal(t, 100, percentages[len(percentages)-1])
}
