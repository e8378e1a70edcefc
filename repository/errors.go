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

package repository

import "errors"

var (
	// ErrNonUniqueResult is returned by FindOne when several rows match.
	ErrNonUniqueResult = errors.New("query did not return a unique result")

	// ErrCompositeKey is returned for models without exactly one primary key.
	ErrCompositeKey = errors.New("model must have exactly one primary key")

	ErrNilEntity   = errors.New("entity must not be nil")
	ErrNoDatabase  = errors.New("database not initialized")
	ErrEmptyFields = errors.New("fields cannot be empty")
)
