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
	"fmt"
	"strings"

	"github.com/tomoncle/hicode/model"
	"github.com/tomoncle/hicode/types"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func appleCommand(r *Runner) *cli.Command {
	return entityCommand(r, entityBinding[model.Apple]{
		name:    "apple",
		service: r.apples,
		saveFlags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Apple name"},
			&cli.StringFlag{Name: "taste", Usage: "Taste description"},
			&cli.FloatFlag{Name: "price", Usage: "Price"},
		},
		build: func(cmd *cli.Command) (*model.Apple, error) {
			apple := model.NewApple(cmd.String("name"), cmd.String("taste"), cmd.Float("price"))
			apple.ID = cmd.Int64("id")
			return apple, nil
		},
	}, "Apple records")
}

func userCommand(r *Runner) *cli.Command {
	return entityCommand(r, entityBinding[model.User]{
		name:    "user",
		service: r.users,
		saveFlags: []cli.Flag{
			&cli.StringFlag{Name: "username", Usage: "User name"},
			&cli.StringFlag{Name: "email", Usage: "Email address"},
			&cli.StringSliceFlag{
				Name:    "attr",
				Aliases: []string{"a"},
				Usage:   "Attribute as key=value, value parsed as a YAML scalar; repeatable",
			},
		},
		build: func(cmd *cli.Command) (*model.User, error) {
			attrs, err := parseAttributes(cmd.StringSlice("attr"))
			if err != nil {
				return nil, err
			}
			user := model.NewUser(cmd.String("username"), cmd.String("email"), attrs)
			user.ID = cmd.Int64("id")
			return user, nil
		},
	}, "User records")
}

// parseAttributes turns key=value pairs into a JSON object. Values are
// decoded as YAML so "age=42" stores a number and "admin=true" a boolean.
func parseAttributes(pairs []string) (types.JsonObject, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(types.JsonObject, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected key=value", pair)
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		attrs[key] = value
	}
	return attrs, nil
}
