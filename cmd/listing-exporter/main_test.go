package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListenPort(t *testing.T) {
	t.Setenv("PORT", "")
	assert.Equal(t, "8080", listenPort())

	t.Setenv("PORT", "9090")
	assert.Equal(t, "9090", listenPort())
}
