package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/lovecleanup/internal/cleanup"
	"github.com/ashureev/lovecleanup/internal/confirm"
	"github.com/ashureev/lovecleanup/internal/domain"
)

var (
	delayScale float64
	scanJSON   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the simulated content scan",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Walk the three-step deletion wizard",
	Long: `Scans, then walks the confirmation wizard:
  1. risk disclosure
  2. acknowledgement plus the typed phrase "` + confirm.Phrase + `"
  3. final commit

The deletion itself is simulated.`,
	Args: cobra.NoArgs,
	RunE: runConfirm,
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, confirmCmd} {
		c.Flags().Float64Var(&delayScale, "delay-scale", 1, "Multiplier for simulated delays (0 = instant)")
	}
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print JSON instead of text")
}

func newScanner() *cleanup.Scanner {
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed>>7))
	}
	return cleanup.NewScanner(delayScale, rng)
}

func runScan(cmd *cobra.Command, _ []string) error {
	targets, err := newScanner().Scan(cmd.Context())
	if err != nil {
		return err
	}
	if scanJSON {
		return printJSON(cmd.OutOrStdout(), targets)
	}
	printTargets(cmd.OutOrStdout(), targets)
	return nil
}

func printTargets(w io.Writer, targets []domain.CleanupTarget) {
	total := 0
	for _, t := range targets {
		fmt.Fprintf(w, "  %-28s %5d\n", t.Label, t.Count)
		total += t.Count
	}
	fmt.Fprintf(w, "  %-28s %5d\n", "Total", total)
}

var errWizardAborted = errors.New("wizard aborted")

// wizard drives a confirm.Session from line-based input.
type wizard struct {
	s    *confirm.Session
	in   *bufio.Scanner
	out  io.Writer
	exec *cleanup.Executor
}

func runConfirm(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	targets, err := newScanner().Scan(ctx)
	if err != nil {
		return err
	}
	w := &wizard{
		s:    confirm.New(targets),
		in:   bufio.NewScanner(cmd.InOrStdin()),
		out:  cmd.OutOrStdout(),
		exec: cleanup.NewExecutor(delayScale, logger),
	}
	err = w.run(ctx)
	if errors.Is(err, errWizardAborted) {
		return nil
	}
	return err
}

func (w *wizard) ask(prompt string) (string, error) {
	fmt.Fprint(w.out, prompt)
	if !w.in.Scan() {
		if err := w.in.Err(); err != nil {
			return "", err
		}
		w.s.Cancel()
		fmt.Fprintln(w.out, "\nNada foi apagado.")
		return "", errWizardAborted
	}
	return strings.TrimSpace(w.in.Text()), nil
}

func (w *wizard) run(ctx context.Context) error {
	for w.s.Outcome() == confirm.Pending {
		v := w.s.View()
		fmt.Fprintf(w.out, "\n[%s] %s\n", v.Step, v.Title)

		var err error
		switch w.s.Stage() {
		case confirm.RiskDisclosure:
			err = w.disclose(v)
		case confirm.TypedConfirmation:
			err = w.typed()
		case confirm.FinalCommit:
			err = w.final(ctx, v)
		}
		if err != nil {
			return err
		}
	}
	if w.s.Outcome() == confirm.Cancelled {
		fmt.Fprintln(w.out, "Cancelado. Nada foi apagado.")
	}
	return nil
}

func (w *wizard) disclose(v confirm.View) error {
	fmt.Fprintln(w.out, "Esta ação é permanente e não pode ser desfeita. Serão apagados:")
	printTargets(w.out, v.Targets)
	answer, err := w.ask("Continuar? [s]im / [c]ancelar: ")
	if err != nil {
		return err
	}
	if isYes(answer) {
		w.s.Advance()
	} else {
		w.s.Cancel()
	}
	return nil
}

func (w *wizard) typed() error {
	answer, err := w.ask("Você entende que os itens serão apagados para sempre? [s/n]: ")
	if err != nil {
		return err
	}
	w.s.SetUnderstood(isYes(answer))

	phrase, err := w.ask(fmt.Sprintf("Digite %q para confirmar (ou \"voltar\"): ", confirm.Phrase))
	if err != nil {
		return err
	}
	if strings.EqualFold(phrase, "voltar") {
		w.s.Back()
		return nil
	}
	w.s.SetTypedConfirmation(phrase)
	if !w.s.Advance() {
		fmt.Fprintln(w.out, "Confirmação incompleta. Marque que entendeu e digite a frase exata.")
	}
	return nil
}

func (w *wizard) final(ctx context.Context, v confirm.View) error {
	fmt.Fprintf(w.out, "Última chance: %d itens serão apagados.\n", v.TotalItems)
	answer, err := w.ask("[d]eletar / [v]oltar / [c]ancelar: ")
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "d", "deletar":
	case "v", "voltar":
		w.s.Back()
		return nil
	default:
		w.s.Cancel()
		return nil
	}

	started := time.Now()
	results, ok := w.s.Commit(ctx, confirm.ExecutorFunc(func(ctx context.Context, categories []domain.Category) []domain.CleanupResult {
		return w.exec.Run(ctx, categories, func(c domain.Category, percent int) {
			if percent == 0 {
				fmt.Fprintf(w.out, "  limpando %s...\n", c.Label())
			}
		})
	}))
	if !ok {
		return errors.New("commit rejected")
	}
	processed := 0
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = strings.Join(r.Errors, "; ")
		}
		fmt.Fprintf(w.out, "  %-28s %5d  %s\n", r.Category.Label(), r.ItemsProcessed, status)
		processed += r.ItemsProcessed
	}
	fmt.Fprintf(w.out, "Concluído: %d itens em %s.\n", processed, time.Since(started).Round(time.Millisecond))
	return nil
}

func isYes(answer string) bool {
	switch strings.ToLower(answer) {
	case "s", "sim", "y", "yes":
		return true
	}
	return false
}
