// Package shell is the interactive operator surface over the answer pipeline.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/domain"
	answeruc "github.com/kailas-cloud/vntravel/internal/usecase/answer"
)

// Examples are the sample queries shown by the "examples" command.
var Examples = []string{
	"Create a romantic 4 day itinerary for Vietnam",
	"What are the best activities in Hanoi?",
	"Recommend luxury hotels in Ho Chi Minh City",
	"Plan a beach vacation in Nha Trang",
	"What's the best time to visit Halong Bay?",
	"Find adventure activities in Sapa",
	"Suggest a food tour in Hoi An",
}

const rule = "================================================================================"

// Pipeline is what the shell drives (ISP).
type Pipeline interface {
	Answer(ctx context.Context, query string) (*domain.GeneratedAnswer, error)
	Stats() answeruc.Stats
	Clear()
}

// Shell reads commands and queries line by line.
type Shell struct {
	pipeline Pipeline
	in       io.Reader
	out      io.Writer
	logger   *zap.Logger
}

// New creates a shell reading from in and writing to out.
func New(p Pipeline, in io.Reader, out io.Writer, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{pipeline: p, in: in, out: out, logger: logger}
}

// Run loops until quit, EOF or ctx cancellation.
func (s *Shell) Run(ctx context.Context) error {
	s.banner()

	sc := bufio.NewScanner(s.in)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	for {
		if ctx.Err() != nil {
			s.println("\nGoodbye!")
			return nil
		}
		s.print("You: ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			s.println("\nGoodbye!")
			return nil
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			s.println("\nThank you for using the Vietnam travel assistant!")
			return nil
		case "examples":
			s.examples()
		case "stats":
			s.stats()
		case "clear":
			s.pipeline.Clear()
			s.println("Cache cleared\n")
		default:
			s.query(ctx, line)
		}
	}
}

func (s *Shell) banner() {
	s.println(rule)
	s.println("HYBRID AI TRAVEL ASSISTANT FOR VIETNAM")
	s.println(rule)
	s.println("\nCombining vector search + knowledge graph + LLM generation")
	s.println("\nCommands:")
	s.println("  - Type your travel question")
	s.println("  - 'examples' - Show example queries")
	s.println("  - 'stats' - Show system statistics")
	s.println("  - 'clear' - Clear cache")
	s.println("  - 'quit' or 'exit' - Exit the program")
	s.println("\n" + rule + "\n")
}

func (s *Shell) examples() {
	s.println("\nExample Queries:")
	for i, q := range Examples {
		s.printf("  %d. %s\n", i+1, q)
	}
	s.println("")
}

func (s *Shell) stats() {
	st := s.pipeline.Stats()
	s.println("\nSystem Statistics:")
	s.printf("  Cached embeddings: %d\n", st.CachedEmbeddings)
	s.printf("  Cached queries: %d\n", st.CachedAnswers)
	s.printf("  Queries served: %d (cache hits: %d)\n", st.QueriesServed, st.CacheHits)
	s.printf("  Last latency: %s, average: %s\n", round(st.LastLatency), round(st.AvgLatency))
	s.printf("  Vector index: %s\n", st.Info.VectorIndex)
	s.printf("  Graph: %s\n", st.Info.Graph)
	s.printf("  Generation model: %s\n\n", st.Info.Model)
}

func (s *Shell) query(ctx context.Context, q string) {
	ans, err := s.pipeline.Answer(ctx, q)
	if err != nil {
		s.logger.Warn("Query failed", zap.String("query", q), zap.Error(err))
		s.printf("\nError processing query: %s\n\n", describe(err))
		return
	}

	s.println("\n" + rule)
	s.println("RESPONSE:")
	s.println(rule)
	s.println(ans.Text)
	s.println("\n---")
	s.println(answeruc.Footer(ans))
	if ans.IsDegraded() {
		markers := make([]string, len(ans.Degraded))
		for i, m := range ans.Degraded {
			markers[i] = string(m)
		}
		s.printf("Degraded: %s\n", strings.Join(markers, ", "))
	}
	s.printf("Total time: %.2fs\n", ans.Duration.Seconds())
	s.println(rule + "\n")
}

// describe renders an error for the operator without stack detail.
func describe(err error) string {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		if genErr.ContextEmpty {
			return fmt.Sprintf("no context found and the generation provider is unavailable (%d attempts)", genErr.Attempts)
		}
		return fmt.Sprintf("the generation provider is unavailable (%d attempts)", genErr.Attempts)
	}
	return err.Error()
}

func round(d time.Duration) time.Duration { return d.Round(time.Millisecond) }

func (s *Shell) print(a string) { _, _ = io.WriteString(s.out, a) }
func (s *Shell) println(a string) { _, _ = io.WriteString(s.out, a+"\n") }
func (s *Shell) printf(format string, a ...any) { _, _ = fmt.Fprintf(s.out, format, a...) }
