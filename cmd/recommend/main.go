// Command recommend computes recommended cold tyre pressures and the
// rolling-resistance energy lost by running a trip away from them.
//
// Usage:
//
//	recommend cold --load 7500 --ambient 28 --speed 95 --surface ripio
//	recommend trip --plate ABC123 --config 6x4 --semitrailer S3 \
//	  --distance 420 --speed 85 --tractor-loads 6500,9000,9000 \
//	  --trailer-loads 8000,8000,8000 --tractor-psi 105,98,100
//	recommend configs
package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/gasparespejo/EFILabs/internal/recommend"
)

type cli struct {
	Cold    coldCmd    `cmd:"" help:"Recommend the cold pressure for a single axle."`
	Trip    tripCmd    `cmd:"" help:"Evaluate every axle of a trip and the energy gap of measured pressures."`
	Configs configsCmd `cmd:"" help:"List the known tractor wheel formulas."`
}

type coldCmd struct {
	Load      float64 `help:"Load per axle in kg." default:"6000"`
	Ambient   float64 `help:"Ambient temperature in °C." default:"20"`
	Speed     float64 `help:"Cruise speed in km/h." default:"80"`
	Grade     float64 `help:"Road grade in percent." default:"0"`
	Surface   string  `help:"Road surface (asfalto, ripio, arena, mojado...)." default:""`
	History   float64 `help:"Tyre history factor, 1 for new tyres." default:"1"`
	Reference float64 `help:"Reference cold pressure in psi." default:"100"`
	Exponent  float64 `help:"Load exponent k in (load/6000)^k." default:"1"`
}

func (c *coldCmd) Run(ctx *kong.Context) error {
	psi, err := recommend.ColdPressure(recommend.Conditions{
		LoadPerAxleKG: c.Load,
		AmbientTempC:  c.Ambient,
		SpeedKmh:      c.Speed,
		GradePercent:  c.Grade,
		Surface:       c.Surface,
		HistoryFactor: c.History,
		ReferencePSI:  c.Reference,
		LoadExponent:  c.Exponent,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(ctx.Stdout, "presion en frio recomendada: %.1f psi (%.2f bar)\n", psi, psi*recommend.PSIToBar)
	return err
}

type tripCmd struct {
	Plate        string    `help:"Vehicle plate." required:""`
	Config       string    `help:"Tractor wheel formula, e.g. 6x4." required:""`
	Semitrailer  string    `help:"Semitrailer class S1, S2 or S3." default:""`
	Distance     float64   `help:"Trip distance in km." required:""`
	Speed        float64   `help:"Average speed in km/h." default:"80"`
	Ambient      float64   `help:"Ambient temperature in °C." default:"20"`
	Grade        float64   `help:"Road grade in percent." default:"0"`
	Surface      string    `help:"Road surface." default:""`
	Used         bool      `help:"Tyres have service history."`
	TractorLoads []float64 `name:"tractor-loads" help:"Tractor axle loads in kg, front to back." required:""`
	TrailerLoads []float64 `name:"trailer-loads" help:"Semitrailer axle loads in kg."`
	TractorPSI   []float64 `name:"tractor-psi" help:"Measured tractor pressures in psi."`
	TrailerPSI   []float64 `name:"trailer-psi" help:"Measured semitrailer pressures in psi."`
}

func (c *tripCmd) Run(ctx *kong.Context) error {
	plan, err := recommend.Evaluate(recommend.Trip{
		Plate:          c.Plate,
		Config:         c.Config,
		Semitrailer:    c.Semitrailer,
		DistanceKM:     c.Distance,
		SpeedKmh:       c.Speed,
		AmbientTempC:   c.Ambient,
		GradePercent:   c.Grade,
		Surface:        c.Surface,
		UsedTyres:      c.Used,
		TractorLoadsKG: c.TractorLoads,
		TrailerLoadsKG: c.TrailerLoads,
		TractorPSI:     c.TractorPSI,
		TrailerPSI:     c.TrailerPSI,
	})
	if err != nil {
		return err
	}
	return printPlan(ctx.Stdout, plan)
}

func printPlan(out io.Writer, plan recommend.Plan) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "patente: %s\n\n", plan.Plate)
	fmt.Fprintln(tw, "unidad\teje\ttipo\tcarga_kg\toptima_psi\treal_psi\toptima_mj\treal_mj\tbrecha_mj\tbrecha_l")
	for _, a := range plan.Axles {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.0f\t%.1f\t%s\t%.2f\t%s\t%s\t%s\n",
			a.Unit, a.Index, a.Class, a.LoadKG, a.OptimalPSI,
			optional(a.ActualPSI, "%.1f"), a.OptimalMJ,
			optional(a.ActualMJ, "%.2f"), optional(a.GapMJ, "%+.2f"), optional(a.GapLiters, "%.2f"))
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "carga total:\t%.0f kg\n", plan.TotalLoadKG)
	if plan.OverweightKG > 0 {
		fmt.Fprintf(tw, "sobrepeso:\t%.0f kg sobre %.0f kg\n", plan.OverweightKG, recommend.MaxTotalWeightKG)
	}
	fmt.Fprintf(tw, "energia optima:\t%.2f MJ\n", plan.OptimalMJ)
	if plan.GapMJ != nil {
		fmt.Fprintf(tw, "energia real:\t%.2f MJ\n", *plan.ActualMJ)
		fmt.Fprintf(tw, "brecha:\t%+.2f MJ (%s %%), %.2f L diesel\n", *plan.GapMJ, optional(plan.GapPct, "%+.1f"), *plan.GapLiters)
	}
	return tw.Flush()
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

type configsCmd struct{}

func (configsCmd) Run(ctx *kong.Context) error {
	tw := tabwriter.NewWriter(ctx.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "formula\tejes\tdireccionales\truedas_motrices\tdescripcion")
	for _, c := range recommend.TruckConfigs() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", c.Code, c.Axles, c.SteerAxles, c.DrivenWheels, c.Description)
	}
	return tw.Flush()
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("recommend"),
		kong.Description("Cold tyre pressure and rolling-resistance energy calculator."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
