/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package timebridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yazug/gpsd/ntpshm"
)

func TestNewContextDefaultsToNotInSync(t *testing.T) {
	pool := ntpshm.NewPool(2, nil)
	ctx := NewContext(pool, nil)
	assert.EqualValues(t, ntpshm.LeapNotInSync, ctx.Leap())
}

func TestContextSetLeap(t *testing.T) {
	pool := ntpshm.NewPool(2, nil)
	ctx := NewContext(pool, nil)
	ctx.SetLeap(0)
	assert.EqualValues(t, 0, ctx.Leap())
}
