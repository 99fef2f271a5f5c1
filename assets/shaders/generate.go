package shaders

//go:generate glslc shader.vert -o vert.spv
//go:generate glslc shader.frag -o frag.spv
