// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

func num(v float64) string {
	if !trajectory.Available(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func printSummary(w io.Writer, rec *trajectory.Record) {
	s := trajectory.Summarize(rec)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "source\t%s\n", rec.Source)
	fmt.Fprintf(tw, "samples\t%d\n", s.Samples)
	fmt.Fprintf(tw, "t\t%s .. %s s\n", num(s.T0), num(s.T1))
	fmt.Fprintf(tw, "|q|\t%s .. %s\n", num(s.QNormMin), num(s.QNormMax))
	fmt.Fprintf(tw, "max speed\t%s m/s\n", num(s.SpeedMax))
	fmt.Fprintf(tw, "max |omega|\t%s rad/s\n", num(s.OmegaMax))
	fmt.Fprintf(tw, "min fuel\t%s\n", num(s.FuelMin))
	if i, ok := trajectory.FirstNonFinite(rec); ok {
		fmt.Fprintf(tw, "first non-finite\tsample %d (t=%s)\n", i, num(rec.T[i]))
	} else {
		fmt.Fprintf(tw, "first non-finite\tnone\n")
	}
	tw.Flush()
	for _, d := range rec.Diagnostics {
		fmt.Fprintf(w, "warning: %v\n", d)
	}
}

func inspectCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print a summary and the first non-finite sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := o.loader().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func keyframesCmd(o *options) *cobra.Command {
	var (
		every int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "keyframes FILE",
		Short: "List key frames, optionally rendering a still of each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := o.loader().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "index\tt\troll\tpitch\tyaw\tspeed\t")
			frames := trajectory.KeyFrames(rec.Len(), every)
			for _, i := range frames {
				e := rec.Euler[i].Degrees()
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
					i, num(rec.T[i]), num(e.Roll), num(e.Pitch), num(e.Yaw), num(rec.Speed(i)))
			}
			tw.Flush()

			if out == "" {
				return nil
			}
			engine, err := o.engine()
			if err != nil {
				return err
			}
			engine.Controller.Install(rec)
			for _, i := range frames {
				path := filepath.Join(out, fmt.Sprintf("keyframe-%05d.png", i))
				if err := engine.WriteSnapshot(i, path); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d stills to %s\n", len(frames), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&every, "every", 100, "sample interval between key frames")
	cmd.Flags().StringVar(&out, "out", "", "directory for snapshot stills (none when empty)")
	return cmd
}

func renderCmd(o *options) *cobra.Command {
	var (
		index      int
		out        string
		simplified bool
	)
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Write PNGs of every view at one sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := o.loader().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			engine, err := o.engine()
			if err != nil {
				return err
			}
			engine.Controller.Install(rec)
			if simplified {
				engine.Controller.SetMode(playback.ModeSimplified)
			}
			if err := engine.Controller.Scrub(index); err != nil {
				return err
			}

			i := engine.Controller.State().Index
			files, err := engine.WriteViews(out, fmt.Sprintf("i%05d", i))
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "sample index (clamped into the record)")
	cmd.Flags().StringVar(&out, "out", ".", "output directory")
	cmd.Flags().BoolVar(&simplified, "simplified", false, "render only the simplified view set")
	return cmd
}

func convertCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Rewrite a trajectory in the format named by OUT's extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := o.loader().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := trajectory.Save(rec, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d samples to %s\n", rec.Len(), args[1])
			return nil
		},
	}
}

func demoCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Locate the demo trajectory and summarize it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := o.loader().LoadDemo(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}
