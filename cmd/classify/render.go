package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/Brownie44l1/imagenet-api/internal/model"
	"github.com/Brownie44l1/imagenet-api/internal/ranking"
)

const barWidth = 20

// bar draws prob as a fixed width text gauge.
func bar(prob float32) string {
	p := float64(prob)
	if math.IsNaN(p) || p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	filled := int(math.Round(p * barWidth))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func renderTable(w io.Writer, name string, result model.PredictionResult) error {
	fmt.Fprintf(w, "Top predictions for %s:\n", name)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, p := range ranking.Predictions(result) {
		fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\n", i+1, p.Label, p.Percent, bar(p.Probability))
	}
	return tw.Flush()
}

type jsonResult struct {
	Source      string             `json:"source"`
	Predictions []model.Prediction `json:"predictions"`
}

func renderJSON(w io.Writer, name string, result model.PredictionResult) error {
	return json.NewEncoder(w).Encode(jsonResult{Source: name, Predictions: ranking.Predictions(result)})
}
