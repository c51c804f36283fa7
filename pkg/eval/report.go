package eval

import (
	"fmt"
	"io"
)

// WriteReport prints the run summary and, when metrics is non-nil, the
// confusion matrix.
func WriteReport(w io.Writer, r *Report, metrics *Metrics) error {
	ew := &errWriter{w: w}
	ew.printf("%s\n", "============================================================")
	ew.printf("Detections: %d  Cycles: %d  Skipped: %d  Errors: %d\n",
		len(r.Detections), r.Cycles, r.Skipped, r.Errors)
	for _, d := range r.Detections {
		ew.printf("  %s  conf=%.2f  start~%s\n", FormatMs(d.AtMs), d.Confidence, FormatMs(d.StartMs))
	}
	if metrics != nil {
		ew.printf("\nConfusion matrix:\n")
		ew.printf("  TP %d  TN %d  FP %d  FN %d\n", metrics.TP, metrics.TN, metrics.FP, metrics.FN)
		ew.printf("  Accuracy  %.2f%%\n", metrics.Accuracy*100)
		ew.printf("  Precision %.2f%%\n", metrics.Precision*100)
		ew.printf("  Recall    %.2f%%\n", metrics.Recall*100)
		ew.printf("  F1        %.4f\n", metrics.F1)
	}
	ew.printf("\nAudio:       %s\n", r.Audio)
	ew.printf("Avg latency: %.2f ms\n", float64(r.MeanLatency().Microseconds())/1000)
	ew.printf("RTF:         %.4f\n", r.RTF())
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
