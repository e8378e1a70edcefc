/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tomoncle/hicode"
	"github.com/tomoncle/hicode/specification"
	"github.com/tomoncle/hicode/types"
	"github.com/urfave/cli/v3"
)

var errNotFound = errors.New("not found")

// entityBinding describes how the generic entity commands build and store
// one entity type.
type entityBinding[T any] struct {
	name    string
	service hicode.Service[T, int64]
	// saveFlags are the entity specific flags of "save".
	saveFlags []cli.Flag
	// build creates an entity from the flags of "save".
	build func(cmd *cli.Command) (*T, error)
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   `Filter clause like "price<3" or "taste is null"; repeatable`,
		},
		&cli.BoolFlag{
			Name:  "any",
			Usage: "Match rows satisfying any filter instead of all",
		},
	}
}

func sortFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "sort",
		Aliases: []string{"s"},
		Usage:   `Sort clauses like "price desc, appleName"`,
	}
}

func entityCommand[T any](r *Runner, b entityBinding[T], usage string) *cli.Command {
	return &cli.Command{
		Name:  b.name,
		Usage: usage,
		Commands: []*cli.Command{
			{
				Name:  "save",
				Usage: "Insert a new " + b.name + " or overwrite the one with --id",
				Flags: append([]cli.Flag{
					&cli.Int64Flag{
						Name:  "id",
						Usage: "Identifier of the row to overwrite",
					},
				}, b.saveFlags...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return saveEntity(ctx, r, b, cmd)
				},
			},
			{
				Name:      "get",
				Usage:     "Print the " + b.name + " with the given id",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return getEntity(ctx, r, b, cmd)
				},
			},
			{
				Name:  "list",
				Usage: "List " + b.name + " rows, optionally one page at a time",
				Flags: []cli.Flag{
					sortFlag(),
					&cli.IntFlag{
						Name:  "page",
						Usage: "1-based page number; 0 lists every row",
					},
					&cli.IntFlag{
						Name:  "size",
						Usage: "Page size",
						Value: 10,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return listEntities(ctx, r, b, cmd)
				},
			},
			{
				Name:  "find",
				Usage: "List " + b.name + " rows matching filters",
				Flags: append(filterFlags(), sortFlag()),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return findEntities(ctx, r, b, cmd)
				},
			},
			{
				Name:  "count",
				Usage: "Count " + b.name + " rows, optionally matching filters",
				Flags: filterFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return countEntities(ctx, r, b, cmd)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete " + b.name + " rows by id or by filters",
				ArgsUsage: "[id...]",
				Flags:     filterFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return deleteEntities(ctx, r, b, cmd)
				},
			},
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func filterSpec(cmd *cli.Command) (specification.Specification, error) {
	return specification.ParseAll(cmd.StringSlice("filter"), cmd.Bool("any"))
}

func saveEntity[T any](ctx context.Context, r *Runner, b entityBinding[T], cmd *cli.Command) error {
	entity, err := b.build(cmd)
	if err != nil {
		return err
	}
	closeDB, err := r.connectForEntities(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	saved, err := b.service.Save(ctx, entity)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", b.name, err)
	}
	return r.render(cmd, saved[0])
}

func getEntity[T any](ctx context.Context, r *Runner, b entityBinding[T], cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one id")
	}
	ids, err := parseIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	closeDB, err := r.connectForEntities(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	entity, found, err := b.service.Get(ctx, ids[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s %d: %w", b.name, ids[0], errNotFound)
	}
	return r.render(cmd, entity)
}

func listEntities[T any](ctx context.Context, r *Runner, b entityBinding[T], cmd *cli.Command) error {
	sort := types.ParseSort(cmd.String("sort"))
	closeDB, err := r.connectForEntities(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if page := cmd.Int("page"); page > 0 {
		pagination, err := b.service.Page(ctx, nil, types.NewPageRequest(page, cmd.Int("size"), sort))
		if err != nil {
			return err
		}
		return renderPage(r, cmd, pagination)
	}
	entities, err := b.service.All(ctx, sort)
	if err != nil {
		return err
	}
	return renderList(r, cmd, entities)
}

func findEntities[T any](ctx context.Context, r *Runner, b entityBinding[T], cmd *cli.Command) error {
	spec, err := filterSpec(cmd)
	if err != nil {
		return err
	}
	closeDB, err := r.connectForEntities(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	entities, err := b.service.Find(ctx, spec, types.ParseSort(cmd.String("sort")))
	if err != nil {
		return err
	}
	return renderList(r, cmd, entities)
}

func countEntities[T any](ctx context.Context, r *Runner, b entityBinding[T], cmd *cli.Command) error {
	spec, err := filterSpec(cmd)
	if err != nil {
		return err
	}
	closeDB, err := r.connectForEntities(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	count, err := b.service.Count(ctx, spec)
	if err != nil {
		return err
	}
	return r.render(cmd, count)
}

// deleteEntities deletes the ids given as arguments, or the rows matching
// --filter when there are none. Deleting everything needs an explicit
// filter such as "id>0".
func deleteEntities[T any](ctx context.Context, r *Runner, b entityBinding[T], cmd *cli.Command) error {
	ids, err := parseIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	filters := cmd.StringSlice("filter")
	if len(ids) == 0 && len(filters) == 0 {
		return fmt.Errorf("delete needs ids or at least one --filter")
	}
	closeDB, err := r.connectForEntities(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if len(ids) > 0 {
		if err := b.service.Delete(ctx, ids...); err != nil {
			return err
		}
		return r.printf("deleted %s %v\n", b.name, ids)
	}
	spec, err := filterSpec(cmd)
	if err != nil {
		return err
	}
	n, err := b.service.DeleteBy(ctx, spec)
	if err != nil {
		return err
	}
	return r.printf("deleted %d %s rows\n", n, b.name)
}

func renderList[T any](r *Runner, cmd *cli.Command, entities []*T) error {
	if cmd.String("output") != "text" {
		return r.render(cmd, entities)
	}
	for _, entity := range entities {
		if err := r.render(cmd, entity); err != nil {
			return err
		}
	}
	return nil
}

func renderPage[T any](r *Runner, cmd *cli.Command, page *types.Pagination[T]) error {
	if cmd.String("output") != "text" {
		return r.render(cmd, page)
	}
	if err := r.printf("page %d/%d, %d total\n", page.Page, page.TotalPages(), page.Total); err != nil {
		return err
	}
	return renderList(r, cmd, page.Items)
}
