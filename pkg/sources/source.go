/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sources reads the position reports that feed the pipeline.
package sources

import (
	"context"

	"github.com/numaproj/linearroad/pkg/shared/config"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	filesource "github.com/numaproj/linearroad/pkg/sources/file"
	"github.com/numaproj/linearroad/pkg/sources/generator"
)

// New returns the file source when a path is configured, the generator otherwise.
func New(ctx context.Context, conf config.Source) (Sourcer, error) {
	log := logging.FromContext(ctx)
	if conf.Path != "" {
		log.Infow("Reading position reports from file", "path", conf.Path)
		return filesource.NewFromFile(conf.Path, filesource.WithLogger(log))
	}
	g := conf.Generator
	log.Infow("Generating position reports", "seed", g.Seed, "xways", g.XWays, "vehicles", g.Vehicles, "minutes", g.Minutes, "accidents", g.Accidents)
	return generator.NewMemGen(g)
}
