package utils

import (
	"fmt"
	"io"
	"sort"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/elC0mpa/aws-teardown/model"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	ColorRank1 = "#d73027"
	ColorRank2 = "#f46d43"
	ColorRank3 = "#fee08b"
	ColorRank4 = "#abdda4"
	ColorRank5 = "#66c2a5"
	ColorRank6 = "#1a9850"
)

var defaultStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("#F4D060"))

// DrawSavingsChart draws one bar per service of the savings estimate.
func DrawSavingsChart(w io.Writer, est model.SavingsEstimate) {
	if len(est.Services) == 0 {
		return
	}

	bc := barchart.New(min(130, 18*len(est.Services)+10), 16)
	indexedColors := assignRankedColors(est.Services)

	for idx, service := range est.Services {
		bc.Push(barchart.BarData{
			Label: getBarLabel(service),
			Values: []barchart.BarValue{
				{
					Name:  service.Name,
					Value: service.Amount,
					Style: lipgloss.NewStyle().Foreground(lipgloss.Color(indexedColors[idx])),
				},
			},
		})
	}

	bc.Draw()
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, defaultStyle.Render(bc.View())))
	fmt.Fprintf(w, " %s %.2f %s / month\n", text.FgHiGreen.Sprint("Estimated savings:"), est.Total, est.Unit)
}

func getBarLabel(service model.ServiceCost) string {
	name := service.Name
	if len(name) > 14 {
		name = name[:13] + "…"
	}
	return fmt.Sprintf("%s: %.0f", name, service.Amount)
}

func assignRankedColors(services []model.ServiceCost) []string {
	palette := []string{ColorRank1, ColorRank2, ColorRank3, ColorRank4, ColorRank5, ColorRank6}

	type costWithIndex struct {
		index int
		value float64
	}

	costsToSort := make([]costWithIndex, len(services))
	for i, s := range services {
		costsToSort[i] = costWithIndex{index: i, value: s.Amount}
	}

	sort.Slice(costsToSort, func(i, j int) bool {
		return costsToSort[i].value > costsToSort[j].value
	})

	resultColors := make([]string, len(services))
	for rank, sortedCost := range costsToSort {
		resultColors[sortedCost.index] = palette[min(rank, len(palette)-1)]
	}

	return resultColors
}
