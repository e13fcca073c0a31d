// Package collection holds small generic containers shared by the gateway packages.
package collection
