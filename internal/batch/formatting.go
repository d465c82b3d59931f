package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/panicle/internal/evaluate"
)

// formatLabels formats a labels run in the specified format.
func formatLabels(r *LabelsResult, format string) (string, error) {
	switch format {
	case "json":
		return formatLabelsJSON(r)
	case "csv":
		return formatLabelsCSV(r)
	case "text", "":
		return formatLabelsText(r), nil
	}
	return "", fmt.Errorf("unsupported output format %q", format)
}

func formatLabelsJSON(r *LabelsResult) (string, error) {
	doc := struct {
		Records []LabelItem `json:"records"`
		Failed  int         `json:"failed"`
	}{Records: r.Items, Failed: r.Failed}
	bts, err := json.MarshalIndent(doc, "", "  ")
	return string(bts) + "\n", err
}

func formatLabelsCSV(r *LabelsResult) (string, error) {
	rows := [][]string{{"record", "label_file", "source", "width", "height", "junctions", "labels", "error"}}
	for _, it := range r.Items {
		if it.Result == nil {
			rows = append(rows, []string{it.RecordPath, "", "", "0", "0", "0", "0", it.Error})
			continue
		}
		res := it.Result
		rows = append(rows, []string{
			it.RecordPath,
			it.LabelPath,
			string(res.Source),
			strconv.Itoa(res.Width),
			strconv.Itoa(res.Height),
			strconv.Itoa(len(res.Junctions)),
			strconv.Itoa(len(res.Labels)),
			"",
		})
	}
	return writeCSV(rows)
}

func formatLabelsText(r *LabelsResult) string {
	var out strings.Builder
	for _, it := range r.Items {
		if it.Result == nil {
			fmt.Fprintf(&out, "%s: error: %s\n", it.RecordPath, it.Error)
			continue
		}
		fmt.Fprintf(&out, "%s: %d labels -> %s\n", it.RecordPath, len(it.Result.Labels), it.LabelPath)
	}
	return out.String()
}

// formatEvaluation formats an evaluate run in the specified format. CSV
// carries the score history only.
func formatEvaluation(r *EvaluateResult, format string) (string, error) {
	var out strings.Builder
	switch format {
	case "json":
		doc := struct {
			Files   []EvaluateItem   `json:"files"`
			Summary evaluate.Summary `json:"summary"`
			Failed  int              `json:"failed"`
		}{Files: r.Items, Summary: r.History.Summary(), Failed: r.Failed}
		bts, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", err
		}
		out.Write(bts)
		out.WriteString("\n")
	case "csv":
		if err := r.History.WriteCSV(&out); err != nil {
			return "", err
		}
	case "text", "":
		for _, it := range r.Items {
			switch {
			case it.Result == nil:
				fmt.Fprintf(&out, "%s: error: %s\n", it.Name, it.Error)
			case !it.Result.Defined:
				fmt.Fprintf(&out, "%s: undefined tp=%d fp=%d fn=%d\n",
					it.Name, it.Result.Result.TP, it.Result.Result.FP, it.Result.Result.FN)
			default:
				s := it.Result.Score
				fmt.Fprintf(&out, "%s: f1=%.4f precision=%.4f recall=%.4f tp=%d fp=%d fn=%d\n",
					it.Name, s.F1, s.Precision, s.Recall,
					it.Result.Result.TP, it.Result.Result.FP, it.Result.Result.FN)
			}
		}
		sum := r.History.Summary()
		fmt.Fprintf(&out, "mean over %d files: f1=%.4f precision=%.4f recall=%.4f\n",
			sum.Count, sum.Mean.F1, sum.Mean.Precision, sum.Mean.Recall)
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
	return out.String(), nil
}

func writeCSV(rows [][]string) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}
