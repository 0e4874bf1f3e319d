// Package model holds the types shared by the pipeline package and its options: steps, step
// details and the hooks a pipeline option implements.
package model
