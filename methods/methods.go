// Package methods imports every pruning method so that they register
// themselves.
package methods

import (
	_ "github.com/MingSun-Tse/smilepruning/pruner/greg"
	_ "github.com/MingSun-Tse/smilepruning/pruner/l1"
)
