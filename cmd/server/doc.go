// Command server runs the analytics hub HTTP service.
package main
