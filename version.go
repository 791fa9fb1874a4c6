package faceproof

const VERSION = "v0.3.1"
