package fixtures

import (
	_ "embed"
)

//go:embed config/hetblas.yaml.template
var ConfigTemplate []byte
