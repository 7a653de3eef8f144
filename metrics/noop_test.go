// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	// the noop service is the default, nothing panics, nothing is served
	assert.Nil(t, HTTPHandler())

	Counter("count").Add(1)
	CounterVec("countVec", []string{"k"}).AddWithLabel(1, map[string]string{"k": "v"})
	Gauge("gauge").Set(1)
	Gauge("gauge").Add(-1)
	GaugeVec("gaugeVec", []string{"k"}).SetWithLabel(1, map[string]string{"k": "v"})
	Histogram("hist", BucketClaimRounds).Observe(5)
}
