// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Command trieroot recomputes the account trie root over an mdbx-backed
// state store, either from scratch or incrementally over a block range.
package main

import (
	"fmt"
	"os"

	"github.com/erigontech/erigon-lib/kv/mdbxkv"
	"github.com/erigontech/erigon-statetrie/trie"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "trieroot",
		Usage: "recompute the account trie root from an mdbx state store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "datadir", Required: true, Usage: "path to the mdbx environment"},
			&cli.Uint64Flag{Name: "from-block", Usage: "start of the incremental block range"},
			&cli.Uint64Flag{Name: "to-block", Usage: "end of the incremental block range (unset = full recompute)"},
			&cli.BoolFlag{Name: "updates", Usage: "persist the resulting trie updates back to the store"},
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "trieroot:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	var logger *zap.Logger
	if c.Bool("verbose") {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
		defer logger.Sync()
	}

	env, err := mdbxkv.Open(c.String("datadir"), 16)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer env.Close()

	from, to := c.Uint64("from-block"), c.Uint64("to-block")
	incremental := c.IsSet("to-block")

	if !c.Bool("updates") {
		tx, err := env.BeginRo()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var root fmt.Stringer
		if incremental {
			root, err = trie.IncrementalRoot(tx, trie.BlockRange{From: from, To: to})
		} else {
			r, rerr := trie.NewStateRoot(tx).WithLogger(logger).Root()
			root, err = r, rerr
		}
		if err != nil {
			return err
		}
		fmt.Println(root.String())
		return nil
	}

	tx, err := env.BeginRw()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var root fmt.Stringer
	var updates *trie.TrieUpdates
	if incremental {
		root, updates, err = trie.IncrementalRootWithUpdates(tx, trie.BlockRange{From: from, To: to})
	} else {
		r, u, rerr := trie.NewStateRoot(tx).WithLogger(logger).RootWithUpdates()
		root, updates, err = r, u, rerr
	}
	if err != nil {
		return err
	}
	if err := updates.Flush(tx); err != nil {
		return fmt.Errorf("flushing updates: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	fmt.Println(root.String())
	return nil
}
