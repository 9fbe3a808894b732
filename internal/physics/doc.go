// Package physics provides simulated plants for closed-loop runs.
//
// Each model implements [System], naming its state and control channels so a
// plant can publish readings like "theta" and accept outputs like "torque":
//
//   - [Pendulum]: damped pendulum driven by a torque
//   - [SpringMass]: spring-mass chain pushed at its first mass
//   - [CartPole]: inverted pendulum on a cart
//   - [DoublePendulum]: chaotic two-link pendulum driven at the upper joint
//   - [Drone]: planar quadrotor with left and right thrust
//
// Models also implement [Configurable] for runtime parameter adjustment and
// [Hamiltonian] for energy calculation. Linked bodies implement [Posed], which
// reports where each link ends up in the plane.
package physics
