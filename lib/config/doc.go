// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the cnl command.
//
// Configuration is loaded from a single file specified by either the
// CNL_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search. Files ending in .json or .jsonc are read as JSON with
// comments and trailing commas; anything else is YAML.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults to JSON logs.
//
// Variable expansion is performed on the key file paths after
// loading: ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
package config
