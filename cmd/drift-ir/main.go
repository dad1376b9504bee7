// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command drift-ir is the standalone pass driver: it reads a textual IR
// listing, runs a selectable pass list over it and writes the result.
//
//	drift-ir -p cfa,lse,cprop,esimp,dce input.ir
package main

import (
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/go-dynarec/drift/backend/x64"
	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/passes"
)

func main() {
	log.SetPrefix("drift-ir: ")
	log.SetFlags(0)

	app := &cli.App{
		Name:      "drift-ir",
		Usage:     "run optimization passes over a textual IR listing",
		ArgsUsage: "input.ir",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "passes",
				Aliases: []string{"p"},
				Value:   "cfa,lse,cprop,esimp,dce,ra",
				Usage:   "comma-separated pass list to run, in order",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write the result to `FILE` instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "check IR invariants after every pass",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		cli.ShowAppHelpAndExit(c, 1)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	b := ir.New(0)
	if err := ir.Read(f, b); err != nil {
		return err
	}

	pipeline, err := buildPipeline(c.String("passes"))
	if err != nil {
		return err
	}
	for _, p := range pipeline {
		if err := p.Run(b); err != nil {
			return err
		}
		if c.Bool("verify") {
			if err := ir.Verify(b); err != nil {
				log.Fatalf("invariant violated after %s: %v", p.Name(), err)
			}
		}
	}

	out := os.Stdout
	if name := c.String("output"); name != "" {
		out, err = os.Create(name)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	return ir.Write(out, b)
}

func buildPipeline(list string) ([]passes.Pass, error) {
	byName := map[string]passes.Pass{
		"cfa":   passes.NewControlFlowAnalysis(),
		"lse":   passes.NewLoadStoreElimination(),
		"cprop": passes.NewConstantPropagation(),
		"esimp": passes.NewExpressionSimplification(),
		"dce":   passes.NewDeadCodeElimination(),
		"ra":    passes.NewRegisterAllocation(x64.RegisterBank),
	}
	var pipeline []passes.Pass
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, ok := byName[name]
		if !ok {
			return nil, cli.Exit("unknown pass: "+name, 1)
		}
		pipeline = append(pipeline, p)
	}
	return pipeline, nil
}
