package main

import (
	"slices"

	"gtfs-router/internal/raptor"
)

func criteriaNames() []string {
	return raptor.CriteriaNames
}

func sortedStrings(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
