package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/qs3c/codelens_go_server/config"
	"github.com/qs3c/codelens_go_server/internal/analyzer/deps"
	"github.com/qs3c/codelens_go_server/internal/analyzer/lang"
	"github.com/qs3c/codelens_go_server/internal/analyzer/scan"
	"github.com/qs3c/codelens_go_server/internal/index"
	"github.com/qs3c/codelens_go_server/internal/model"
	"github.com/qs3c/codelens_go_server/internal/pkg/llm"
	"github.com/qs3c/codelens_go_server/internal/pkg/pubsub"
	"github.com/qs3c/codelens_go_server/internal/pkg/queue"
	"github.com/qs3c/codelens_go_server/internal/repository"
)

// errCancelled 任务被外部取消，沿调用链展开但不覆盖 CANCELLED 状态
var errCancelled = errors.New("analysis cancelled")

// Explainer 模型侧能力，真实实现为 llm.Client
type Explainer interface {
	ExplainSymbols(ctx context.Context, query, filePath string, symbols []llm.SymbolInput) ([]llm.Explanation, error)
	Synthesize(ctx context.Context, query string, sections []string) (string, error)
}

// Processor 分析任务处理器，驱动报告状态机
type Processor struct {
	reportRepo      *repository.ReportRepository
	explanationRepo *repository.ExplanationRepository
	vulnRepo        *repository.VulnerabilityRepository
	projectRepo     *repository.ProjectRepository
	indexer         *index.Indexer
	explainer       Explainer
	publisher       *pubsub.Publisher
	cfg             *config.Config
}

// NewProcessor 创建任务处理器
func NewProcessor(
	reportRepo *repository.ReportRepository,
	explanationRepo *repository.ExplanationRepository,
	vulnRepo *repository.VulnerabilityRepository,
	projectRepo *repository.ProjectRepository,
	indexer *index.Indexer,
	explainer Explainer,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		reportRepo:      reportRepo,
		explanationRepo: explanationRepo,
		vulnRepo:        vulnRepo,
		projectRepo:     projectRepo,
		indexer:         indexer,
		explainer:       explainer,
		publisher:       publisher,
		cfg:             cfg,
	}
}

// jobState 单次运行的可变状态，进度只增不减
type jobState struct {
	msg        *queue.AnalysisMessage
	report     *model.AnalysisReport
	root       string
	languages  []string
	mode       string // "targeted" / "full"
	files      []string
	symbols    int
	explained  int
	findings   []*model.Vulnerability
	recommends []map[string]interface{}
	progress   model.Progress
}

// Process 处理一条分析任务消息
func (p *Processor) Process(ctx context.Context, msg *queue.AnalysisMessage) error {
	report, err := p.reportRepo.GetByID(msg.ReportID)
	if err != nil {
		return fmt.Errorf("failed to load report %d: %w", msg.ReportID, err)
	}

	// 入队后被取消（或重复投递）的任务直接跳过
	if report.Status != model.StatusPending {
		log.Printf("Report %d: status %s, skipping", report.ID, report.Status)
		return nil
	}

	project, err := p.projectRepo.GetByID(msg.ProjectID)
	if err != nil {
		p.fail(ctx, report, "项目不存在或已被删除")
		return fmt.Errorf("failed to load project %s: %w", msg.ProjectID, err)
	}

	languages := msg.Languages
	if len(languages) == 0 {
		languages = project.Languages
	}

	st := &jobState{
		msg:       msg,
		report:    report,
		root:      project.RootDir,
		languages: languages,
	}

	if err := p.reportRepo.UpdateStatus(report.ID, model.StatusProcessing); err != nil {
		return fmt.Errorf("failed to mark report %d processing: %w", report.ID, err)
	}
	start := time.Now()
	log.Printf("Report %d: started (type=%s, project=%s)", report.ID, report.Type, project.ID)

	err = p.run(ctx, st)
	switch {
	case errors.Is(err, errCancelled):
		// 状态已由取消方写为 CANCELLED，这里只收尾
		log.Printf("Report %d: cancelled after %s", report.ID, time.Since(start).Round(time.Millisecond))
		return nil
	case err != nil:
		p.fail(ctx, report, err.Error())
		return err
	}

	result := p.buildResult(st)
	st.progress.Percentage = 100
	st.progress.CurrentStep = "分析完成"
	if err := p.reportRepo.UpdateFields(report.ID, map[string]interface{}{
		"status":   model.StatusCompleted,
		"progress": st.progress,
		"result":   result,
	}); err != nil {
		return fmt.Errorf("failed to complete report %d: %w", report.ID, err)
	}
	p.publish(ctx, st, model.StatusCompleted, pubsub.PhaseDone, "")

	log.Printf("Report %d: completed in %s (%d files, %d explanations, %d findings)",
		report.ID, time.Since(start).Round(time.Millisecond), len(st.files), st.explained, len(st.findings))
	return nil
}

// run 执行检索、逐文件分析和综合阶段，出错时返回原始错误
func (p *Processor) run(ctx context.Context, st *jobState) error {
	if err := p.checkpoint(st); err != nil {
		return err
	}

	if err := p.selectFiles(ctx, st); err != nil {
		return err
	}
	if len(st.files) == 0 {
		return errors.New("项目中没有可分析的源码文件")
	}

	st.progress.TotalFiles = len(st.files)
	p.step(ctx, st, pubsub.PhaseAnalyzing, "开始逐文件分析")

	for _, relPath := range st.files {
		if err := p.checkpoint(st); err != nil {
			return err
		}

		if err := p.analyzeFile(ctx, st, relPath); err != nil {
			return err
		}

		st.progress.ProcessedFiles++
		pct := st.progress.ProcessedFiles * 100 / st.progress.TotalFiles
		if pct > st.progress.Percentage {
			st.progress.Percentage = pct
		}
		st.progress.CurrentStep = "已分析 " + relPath
		p.reportRepo.UpdateProgress(st.report.ID, st.progress)
		p.publish(ctx, st, model.StatusProcessing, pubsub.PhaseAnalyzing, "")
	}

	if st.mode == "targeted" && needsExplanation(st.report.Type) {
		if err := p.checkpoint(st); err != nil {
			return err
		}
		p.step(ctx, st, pubsub.PhaseSynthesizing, "正在汇总整体回答")
		if err := p.synthesize(ctx, st); err != nil {
			return err
		}
	}

	return nil
}

// selectFiles 确定本次运行的工作文件集（相对路径，稳定有序）
func (p *Processor) selectFiles(ctx context.Context, st *jobState) error {
	p.step(ctx, st, pubsub.PhaseRetrieving, "正在确定分析范围")

	// 指定单文件时不做检索
	if st.msg.FilePath != "" {
		st.mode = "full"
		st.files = []string{st.msg.FilePath}
		return nil
	}

	// 带查询的解释分析走语义检索
	if st.msg.Query != "" && needsExplanation(st.report.Type) {
		hits, err := p.indexer.Search(ctx, st.msg.ProjectID, st.msg.Query, p.cfg.Analysis.TopKOrDefault())
		if err != nil {
			log.Printf("Report %d: semantic search failed, falling back to full scan: %v", st.report.ID, err)
		} else if len(hits) > 0 {
			seeds := make([]string, 0, len(hits))
			for _, hit := range hits {
				seeds = append(seeds, hit.Entry.FilePath)
			}

			closure := deps.Resolve(st.root, seeds, p.cfg.Analysis.DepthOrDefault())
			set := map[string]struct{}{}
			for _, seed := range seeds {
				set[seed] = struct{}{}
				for _, dep := range closure[seed] {
					set[dep] = struct{}{}
				}
			}

			files := make([]string, 0, len(set))
			for f := range set {
				files = append(files, f)
			}
			sort.Strings(files)

			st.mode = "targeted"
			st.files = files
			return nil
		}
		// 零命中降级为全量分析
		log.Printf("Report %d: no semantic hits for query, falling back to full scan", st.report.ID)
	}

	files, err := lang.SourceFiles(st.root, st.languages)
	if err != nil {
		return fmt.Errorf("failed to walk project: %w", err)
	}
	st.mode = "full"
	st.files = files
	return nil
}

// analyzeFile 对单个文件做符号提取和按类型的分析，单文件失败不致命
func (p *Processor) analyzeFile(ctx context.Context, st *jobState, relPath string) error {
	language, ok := lang.Detect(relPath)
	if !ok {
		return nil
	}

	content, err := os.ReadFile(filepath.Join(st.root, relPath))
	if err != nil {
		log.Printf("Report %d: failed to read %s: %v", st.report.ID, relPath, err)
		return nil
	}

	symbols, err := lang.Extract(relPath, language.Name, content)
	if err != nil {
		log.Printf("Report %d: failed to extract %s: %v", st.report.ID, relPath, err)
		return nil
	}
	if max := p.cfg.Analysis.MaxSymbolsOrDefault(); len(symbols) > max {
		symbols = symbols[:max]
	}
	st.symbols += len(symbols)

	if needsExplanation(st.report.Type) {
		if err := p.explainFile(ctx, st, relPath, symbols); err != nil {
			return err
		}
	}

	if st.report.Type == model.TypeVulnerability || st.report.Type == model.TypeFull {
		var rows []*model.Vulnerability
		for _, sym := range symbols {
			for _, f := range scan.ScanSymbol(sym) {
				rows = append(rows, &model.Vulnerability{
					ReportID:   st.report.ID,
					FilePath:   relPath,
					SymbolName: sym.Name,
					Line:       f.Line,
					Severity:   f.Severity,
					Category:   f.Category,
					Message:    f.Message,
				})
			}
		}
		if len(rows) > 0 {
			if err := p.vulnRepo.CreateBatch(rows); err != nil {
				return fmt.Errorf("failed to save findings for %s: %w", relPath, err)
			}
		}
		st.findings = append(st.findings, rows...)
	}

	if st.report.Type == model.TypeRecommendation || st.report.Type == model.TypeFull {
		for _, sym := range symbols {
			for _, rec := range scan.Recommend(sym) {
				st.recommends = append(st.recommends, map[string]interface{}{
					"file_path":   relPath,
					"symbol_name": sym.Name,
					"line":        rec.Line,
					"category":    rec.Category,
					"priority":    rec.Priority,
					"message":     rec.Message,
				})
			}
		}
	}

	return nil
}

// explainFile 将文件符号按批送模型解释，结果逐文件落库
func (p *Processor) explainFile(ctx context.Context, st *jobState, relPath string, symbols []lang.Symbol) error {
	batchSize := p.cfg.Analysis.BatchSizeOrDefault()

	for start := 0; start < len(symbols); start += batchSize {
		if err := p.checkpoint(st); err != nil {
			return err
		}

		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		inputs := make([]llm.SymbolInput, 0, len(batch))
		for _, sym := range batch {
			inputs = append(inputs, llm.SymbolInput{
				Name:     sym.Name,
				Kind:     sym.Kind,
				Code:     sym.Code,
				Language: sym.Language,
			})
		}

		explanations, err := p.explainer.ExplainSymbols(ctx, st.msg.Query, relPath, inputs)
		if err != nil {
			// 单批失败只丢这一批，后续批次和文件继续
			log.Printf("Report %d: explain batch failed for %s: %v", st.report.ID, relPath, err)
			continue
		}

		rows := make([]*model.CodeExplanation, 0, len(batch))
		for i, sym := range batch {
			rows = append(rows, &model.CodeExplanation{
				ReportID:   st.report.ID,
				FilePath:   relPath,
				SymbolName: sym.Name,
				SymbolType: sym.Kind,
				LineStart:  sym.LineStart,
				LineEnd:    sym.LineEnd,
				Summary:    explanations[i].Summary,
				Detailed:   explanations[i].Detailed,
				Complexity: explanations[i].Complexity,
			})
		}
		if err := p.explanationRepo.CreateBatch(rows); err != nil {
			return fmt.Errorf("failed to save explanations for %s: %w", relPath, err)
		}
		st.explained += len(rows)
	}

	return nil
}

// synthesize 用分析过的文件内容加原始查询生成整体回答。
// 文件越多单文件预算越小，受上下限约束，总量有界。
func (p *Processor) synthesize(ctx context.Context, st *jobState) error {
	perFile := p.cfg.Analysis.SynthesisBudgetOrDefault() / len(st.files)
	if floor := p.cfg.Analysis.SynthesisFloorOrDefault(); perFile < floor {
		perFile = floor
	}
	if ceil := p.cfg.Analysis.SynthesisCeilOrDefault(); perFile > ceil {
		perFile = ceil
	}

	sections := make([]string, 0, len(st.files))
	for _, relPath := range st.files {
		content, err := os.ReadFile(filepath.Join(st.root, relPath))
		if err != nil {
			continue
		}
		text := index.TruncateBytes(string(content), perFile)
		sections = append(sections, "## "+relPath+"\n"+text)
	}

	answer, err := p.explainer.Synthesize(ctx, st.msg.Query, sections)
	if err != nil {
		// 已落库的逐符号解释保留，任务以失败收场
		return fmt.Errorf("综合解释生成失败: %w", err)
	}
	st.report.Result = model.JSONMap{"synthesis": answer}
	return nil
}

// buildResult 组装按类型的结果载荷
func (p *Processor) buildResult(st *jobState) model.JSONMap {
	result := model.JSONMap{
		"mode":           st.mode,
		"files_analyzed": len(st.files),
	}

	if needsExplanation(st.report.Type) {
		result["total_symbols"] = st.symbols
		result["symbols_explained"] = st.explained
		result["languages"] = st.languages
		if st.msg.Query != "" {
			result["query"] = st.msg.Query
		}
		if st.report.Result != nil {
			if synthesis, ok := st.report.Result["synthesis"]; ok {
				result["synthesis"] = synthesis
			}
		}
	}

	if st.report.Type == model.TypeVulnerability || st.report.Type == model.TypeFull {
		bySeverity := map[string]int{}
		byCategory := map[string]int{}
		for _, v := range st.findings {
			bySeverity[v.Severity]++
			byCategory[v.Category]++
		}
		result["vulnerabilities"] = map[string]interface{}{
			"total":       len(st.findings),
			"by_severity": bySeverity,
			"by_category": byCategory,
		}
	}

	if st.report.Type == model.TypeRecommendation || st.report.Type == model.TypeFull {
		byPriority := map[string]int{}
		for _, rec := range st.recommends {
			byPriority[rec["priority"].(string)]++
		}
		result["recommendations"] = st.recommends
		result["total_recommendations"] = len(st.recommends)
		result["by_priority"] = byPriority
	}

	if st.report.Type == model.TypeFull {
		result["summary"] = map[string]interface{}{
			"vulnerabilities_found":  len(st.findings),
			"explanations_generated": st.explained,
			"recommendations_count":  len(st.recommends),
			"analysis_date":          time.Now().Format(time.RFC3339),
		}
	}

	return result
}

// checkpoint 协作式取消检查：外部写入 CANCELLED 后在下一个检查点生效
func (p *Processor) checkpoint(st *jobState) error {
	status, err := p.reportRepo.GetStatus(st.report.ID)
	if err != nil {
		return fmt.Errorf("failed to check report status: %w", err)
	}
	if status == model.StatusCancelled {
		return errCancelled
	}
	return nil
}

// step 记录阶段切换并推送进度
func (p *Processor) step(ctx context.Context, st *jobState, phase, description string) {
	st.progress.CurrentStep = description
	p.reportRepo.UpdateProgress(st.report.ID, st.progress)
	p.publish(ctx, st, model.StatusProcessing, phase, "")
}

// fail 将任务置为失败并推送错误，已落库的部分结果保留
func (p *Processor) fail(ctx context.Context, report *model.AnalysisReport, message string) {
	if err := p.reportRepo.UpdateFields(report.ID, map[string]interface{}{
		"status":        model.StatusFailed,
		"error_message": message,
	}); err != nil {
		log.Printf("Report %d: failed to mark failed: %v", report.ID, err)
	}
	if p.publisher != nil {
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			UserID:    report.UserID,
			ReportID:  report.ID,
			ProjectID: report.ProjectID,
			Status:    model.StatusFailed,
			Phase:     pubsub.PhaseDone,
			Error:     message,
		})
	}
	log.Printf("Report %d: failed: %s", report.ID, message)
}

func (p *Processor) publish(ctx context.Context, st *jobState, status, phase, errMsg string) {
	if p.publisher == nil {
		return
	}
	p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:         st.msg.UserID,
		ReportID:       st.report.ID,
		ProjectID:      st.msg.ProjectID,
		Status:         status,
		Phase:          phase,
		Percentage:     st.progress.Percentage,
		ProcessedFiles: st.progress.ProcessedFiles,
		TotalFiles:     st.progress.TotalFiles,
		Error:          errMsg,
	})
}

func needsExplanation(reportType string) bool {
	return reportType == model.TypeExplanation || reportType == model.TypeFull
}
